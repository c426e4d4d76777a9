package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/catalog"
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/engine"
)

const shopCaption = "🛒 Pick a category:"

// ShopHandlers serves the catalog menus.
type ShopHandlers struct {
	eng     Engine
	catalog *catalog.Catalog
	kb      *keyboard.Builder
	log     *slog.Logger
}

func NewShopHandlers(eng Engine, cat *catalog.Catalog, kb *keyboard.Builder, log *slog.Logger) *ShopHandlers {
	if log == nil {
		log = slog.Default()
	}
	return &ShopHandlers{eng: eng, catalog: cat, kb: kb, log: log}
}

// Menu shows the categories. It serves /shop, the shop button and the back button.
func (h *ShopHandlers) Menu(c telebot.Context) error {
	markup, err := h.kb.Categories()
	if err != nil {
		return err
	}
	return show(c, shopCaption, markup)
}

// Category opens a category: its groups when the offers are grouped, the offers otherwise.
func (h *ShopHandlers) Category(c telebot.Context) error {
	category := domain.Category(CallbackPayload(c))
	if !category.Valid() {
		h.log.Warn("unknown category in callback", slog.String("data", CallbackPayload(c)))
		return h.Menu(c)
	}

	if groups := h.catalog.Groups(category); len(groups) > 0 {
		markup, err := h.kb.Groups(category, groups)
		if err != nil {
			return err
		}
		return show(c, keyboard.CategoryTitle(category), markup)
	}

	return h.offers(c, category, h.catalog.Offers(category))
}

// Group lists the offers of one group inside a category.
func (h *ShopHandlers) Group(c telebot.Context) error {
	rawCategory, group, err := keyboard.ParseOfferRef(CallbackPayload(c))
	if err != nil {
		return h.Menu(c)
	}
	category := domain.Category(rawCategory)
	if !category.Valid() {
		return h.Menu(c)
	}

	return h.offers(c, category, h.catalog.InGroup(category, group))
}

// Offer starts the purchase of the pressed offer.
func (h *ShopHandlers) Offer(c telebot.Context) error {
	rawCategory, key, err := keyboard.ParseOfferRef(CallbackPayload(c))
	if err != nil {
		h.log.Warn("malformed offer callback", slog.String("data", CallbackPayload(c)))
		return h.Menu(c)
	}

	res, err := h.eng.Handle(RequestContext(c), engine.Event{
		Kind:     engine.EventSelectOffer,
		Actor:    Actor(c),
		Category: domain.Category(rawCategory),
		Key:      key,
	})
	if err != nil {
		return err
	}
	return send(c, res)
}

func (h *ShopHandlers) offers(c telebot.Context, category domain.Category, offers []domain.Offer) error {
	if len(offers) == 0 {
		return show(c, "Nothing on sale here yet.", nil)
	}

	markup, err := h.kb.Offers(offers)
	if err != nil {
		return err
	}
	return show(c, keyboard.CategoryTitle(category), markup)
}
