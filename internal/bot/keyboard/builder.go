package keyboard

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

var categoryTitles = map[domain.Category]string{
	domain.CategoryCurrency: "🎮 Game currency",
	domain.CategoryPremium:  "⭐ Telegram Premium",
	domain.CategoryStars:    "🌟 Telegram Stars",
}

// CategoryTitle returns the menu caption of a category.
func CategoryTitle(c domain.Category) string {
	if title, ok := categoryTitles[c]; ok {
		return title
	}
	return string(c)
}

// Builder creates the storefront inline menus.
type Builder struct {
	log  *slog.Logger
	sign string
}

// NewBuilder returns a new Builder that prints prices with the given currency sign.
func NewBuilder(log *slog.Logger, currencySign string) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log, sign: currencySign}
}

// Categories builds the top level shop menu.
func (b *Builder) Categories() (*telebot.ReplyMarkup, error) {
	kb := NewInlineKeyboard()
	for _, c := range domain.Categories {
		kb.AddRow(InlineButton{Text: CategoryTitle(c), Unique: CallbackCategory, Data: string(c)})
	}
	return b.build(kb, "categories")
}

// Groups builds the sub-menu of a category whose offers are grouped, e.g. by game.
func (b *Builder) Groups(category domain.Category, groups []string) (*telebot.ReplyMarkup, error) {
	kb := NewInlineKeyboard()
	for _, g := range groups {
		kb.AddRow(InlineButton{Text: g, Unique: CallbackGroup, Data: OfferRef(string(category), g)})
	}
	kb.AddRow(b.backToMenu())
	return b.build(kb, "groups")
}

// Offers lists priced offers two per row.
func (b *Builder) Offers(offers []domain.Offer) (*telebot.ReplyMarkup, error) {
	kb := NewInlineKeyboard()

	row := make([]InlineButton, 0, 2)
	for _, o := range offers {
		row = append(row, InlineButton{
			Text:   fmt.Sprintf("%s · %s", o.Label, domain.FormatMoney(o.Price, b.sign)),
			Unique: CallbackOffer,
			Data:   OfferRef(string(o.Category), o.Key),
		})
		if len(row) == 2 {
			kb.AddRow(row...)
			row = row[:0]
		}
	}
	kb.AddRow(row...)
	kb.AddRow(b.backToMenu())

	return b.build(kb, "offers")
}

// TopUp offers a single button that starts the top-up flow.
func (b *Builder) TopUp() (*telebot.ReplyMarkup, error) {
	kb := NewInlineKeyboard().AddRow(InlineButton{Text: "💳 Top up balance", Unique: CallbackTopUp})
	return b.build(kb, "topup")
}

// OrderActions builds the approve and cancel pair bound to an order id.
func OrderActions(orderID string) []InlineButton {
	return []InlineButton{
		{Text: "✅ Approve", Unique: CallbackApprove, Data: orderID},
		{Text: "❌ Cancel", Unique: CallbackReject, Data: orderID},
	}
}

// Pending lists a page of pending orders with their actions and a pagination row.
func (b *Builder) Pending(orders []domain.Order, page, pageSize int) (*telebot.ReplyMarkup, error) {
	start, end, pages := Page(len(orders), pageSize, page)

	kb := NewInlineKeyboard()
	for _, o := range orders[start:end] {
		actions := OrderActions(o.ID)
		actions[0].Text = "✅ " + o.Label
		kb.AddRow(actions...)
	}
	if pages > 1 {
		kb.AddRow(PaginationButtons(CallbackPending, page, pages)...)
	}

	return b.build(kb, "pending")
}

func (b *Builder) backToMenu() InlineButton {
	return InlineButton{Text: "⬅️ Back", Unique: CallbackMenu}
}

func (b *Builder) build(kb *InlineKeyboardBuilder, menu string) (*telebot.ReplyMarkup, error) {
	markup, err := kb.Build()
	if err != nil {
		b.log.Error("failed to build keyboard", slog.String("menu", menu), slog.Any("error", err))
		return nil, err
	}
	return markup, nil
}
