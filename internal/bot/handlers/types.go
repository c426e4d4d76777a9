package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/engine"
	"github.com/Proton-105/storefront-bot/internal/notify"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Engine is the order lifecycle as seen by the handlers.
type Engine interface {
	Handle(ctx context.Context, ev engine.Event) (engine.Result, error)
	Summary(ctx context.Context, userID int64) (balance, referrals int64, err error)
	Pending(ctx context.Context, actor int64) ([]domain.Order, error)
	CreatePromo(ctx context.Context, actor int64, code string, amount int64, uses int) (string, error)
	Texts() notify.Templates
	Rules() engine.Rules
}

var _ Engine = (*engine.Engine)(nil)
