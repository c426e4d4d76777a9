package middleware

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	"github.com/Proton-105/storefront-bot/internal/idempotency"
)

// Idempotency runs handlers at most once per Telegram update, so a redelivered
// purchase or approval does not move money twice.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}

			_, err := manager.Execute(handlers.RequestContext(c), key, func(ctx context.Context) error {
				return next(c)
			})
			if errors.Is(err, idempotency.ErrRequestInProgress) {
				log.Debug("update is already being processed", slog.String("key", key))
				return nil
			}
			return err
		}
	}
}

func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if u := c.Update(); u.ID != 0 {
		return idempotency.Key("update", u.ID)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return idempotency.Key("cb", cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return idempotency.Key("msg", chatID, msg.ID)
	}

	return ""
}
