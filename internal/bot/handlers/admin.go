package handlers

import (
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/engine"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

const (
	pendingPageSize = 8
	newPromoUsage   = "Usage: /newpromo CODE AMOUNT USES"
)

// AdminHandlers serves order moderation and promo management.
type AdminHandlers struct {
	eng Engine
	kb  *keyboard.Builder
	log *slog.Logger
}

func NewAdminHandlers(eng Engine, kb *keyboard.Builder, log *slog.Logger) *AdminHandlers {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandlers{eng: eng, kb: kb, log: log}
}

// Approve completes the order bound to the pressed button.
func (h *AdminHandlers) Approve(c telebot.Context) error {
	return h.resolve(c, engine.EventApprove)
}

// Reject cancels the order bound to the pressed button.
func (h *AdminHandlers) Reject(c telebot.Context) error {
	return h.resolve(c, engine.EventReject)
}

func (h *AdminHandlers) resolve(c telebot.Context, kind engine.EventKind) error {
	orderID := CallbackPayload(c)
	if orderID == "" {
		return apperrors.NewValidationError("This button is no longer valid.")
	}

	res, err := h.eng.Handle(RequestContext(c), engine.Event{Kind: kind, Actor: Actor(c), OrderID: orderID})
	if err != nil {
		return err
	}
	if res.Reply == nil {
		return nil
	}

	// a single order card is closed in place; the /pending list keeps its other buttons
	msg := c.Message()
	if msg != nil && msg.ReplyMarkup != nil && len(msg.ReplyMarkup.InlineKeyboard) == 1 {
		if err := c.Edit(msg.Text + "\n\n" + res.Reply.Text); err == nil {
			return nil
		}
	}
	return Reply(c, *res.Reply)
}

// Pending lists pending orders. It serves /pending and the pagination buttons.
func (h *AdminHandlers) Pending(c telebot.Context) error {
	if c.Sender() == nil {
		return nil
	}

	page := 1
	if c.Callback() != nil {
		if p, err := strconv.Atoi(CallbackPayload(c)); err == nil {
			page = p
		}
	}

	orders, err := h.eng.Pending(RequestContext(c), c.Sender().ID)
	if err != nil {
		return err
	}

	header := h.eng.Texts().PendingHeader(len(orders))
	if len(orders) == 0 {
		return show(c, header, nil)
	}

	markup, err := h.kb.Pending(orders, page, pendingPageSize)
	if err != nil {
		return err
	}
	return show(c, header, markup)
}

// NewPromo handles /newpromo CODE AMOUNT USES.
func (h *AdminHandlers) NewPromo(c telebot.Context) error {
	if c.Sender() == nil {
		return nil
	}

	args := CommandArgs(c)
	if len(args) != 3 {
		return c.Send(newPromoUsage)
	}

	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Send(newPromoUsage)
	}
	uses, err := strconv.Atoi(args[2])
	if err != nil {
		return c.Send(newPromoUsage)
	}

	code, err := h.eng.CreatePromo(RequestContext(c), c.Sender().ID, args[0], amount, uses)
	if err != nil {
		return err
	}

	return Reply(c, h.eng.Texts().PromoCreated(code, amount, uses))
}
