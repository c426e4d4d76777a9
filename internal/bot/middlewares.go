package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/pkg/logger"
)

const (
	fallbackUserMessage = "⚠️ Something went wrong. Please try again later."
	callbackAnsweredKey = "callback_answered"
)

// Joiner records every contact and pays referral bonuses to inviters.
type Joiner interface {
	Join(ctx context.Context, profile domain.Profile) (bool, error)
}

// RequestContextMiddleware gives each update a context with its own correlation id.
func RequestContextMiddleware() handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if _, ok := c.Get(handlers.ContextKey).(context.Context); !ok {
				c.Set(handlers.ContextKey, logger.WithCorrelationID(context.Background()))
			}
			return next(c)
		}
	}
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx := handlers.RequestContext(c)
					log.ErrorContext(ctx, "panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := fallbackUserMessage
					if errHandler != nil {
						appErr := apperrors.NewPersistenceError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(ctx, appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
// Callback errors are shown as an alert; a shortfall comes with a top-up button.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler, kb *keyboard.Builder) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := fallbackUserMessage
			if errHandler != nil {
				if msg, _ := errHandler.Handle(handlers.RequestContext(c), err); msg != "" {
					userMsg = msg
				}
			}

			if c == nil {
				return nil
			}

			if c.Callback() != nil {
				c.Set(callbackAnsweredKey, true)
				_ = c.Respond(&telebot.CallbackResponse{Text: userMsg, ShowAlert: true})
				return nil
			}

			if apperrors.HasCode(err, apperrors.CodeInsufficientFunds) && kb != nil {
				if markup, mkErr := kb.TopUp(); mkErr == nil {
					_ = c.Send(userMsg, markup)
					return nil
				}
			}

			_ = c.Send(userMsg)
			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := handlers.RequestContext(c)

			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := ""
			if c != nil {
				if cb := c.Callback(); cb != nil {
					action = cb.Data
				} else {
					action = c.Text()
				}
			}

			log.DebugContext(ctx, "handling update", slog.Int64("user_id", userID), slog.String("action", action))
			err := next(c)
			log.InfoContext(ctx, "handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// AuthMiddleware records the sender before any handler runs. A /start carrying
// an invite payload links a first contact to the inviter.
func AuthMiddleware(joiner Joiner, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if joiner == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			profile := handlers.Actor(c)
			profile.ReferredBy = referrerOf(c)

			created, err := joiner.Join(handlers.RequestContext(c), profile)
			if err != nil {
				log.Error("failed to record user", slog.Int64("user_id", profile.UserID), slog.Any("error", err))
				return err
			}
			if created {
				log.Info("new user", slog.Int64("user_id", profile.UserID), slog.Int64("referred_by", profile.ReferredBy))
			}

			return next(c)
		}
	}
}

// referrerOf parses "/start ref<id>" and returns 0 for anything else.
func referrerOf(c telebot.Context) int64 {
	if c.Callback() != nil {
		return 0
	}
	text := strings.TrimSpace(c.Text())
	if !strings.HasPrefix(text, "/") || commandOf(text) != CommandStart {
		return 0
	}

	args := handlers.CommandArgs(c)
	if len(args) == 0 || !strings.HasPrefix(args[0], handlers.ReferralPayloadPrefix) {
		return 0
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], handlers.ReferralPayloadPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}
