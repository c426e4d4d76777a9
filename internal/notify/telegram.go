package notify

import (
	"context"
	stdErrors "errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

// botAPI is the part of telebot.Bot used for delivery.
type botAPI interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramSender sends messages through the Bot API behind a circuit breaker.
type TelegramSender struct {
	bot     botAPI
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

var _ Sender = (*TelegramSender)(nil)

// NewTelegramSender wraps bot. A nil breaker gets the default settings.
func NewTelegramSender(bot botAPI, breaker *apperrors.CircuitBreaker, log *slog.Logger) *TelegramSender {
	if log == nil {
		log = slog.Default()
	}
	if breaker == nil {
		breaker = apperrors.NewCircuitBreakerWithSettings(apperrors.BreakerSettings{
			OnStateChange: func(from, to apperrors.State) {
				log.Warn("telegram circuit breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
			},
		})
	}

	return &TelegramSender{bot: bot, breaker: breaker, log: log}
}

// Send delivers msg to chatID. Errors that a retry cannot fix are returned as non-retryable.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, msg Message) error {
	markup, err := msg.Markup()
	if err != nil {
		return permanent(chatID, err)
	}

	opts := &telebot.SendOptions{ReplyMarkup: markup, DisableWebPagePreview: true}

	err = s.breaker.Call(func() error {
		done := make(chan error, 1)
		go func() {
			_, sendErr := s.bot.Send(telebot.ChatID(chatID), msg.Text, opts)
			done <- sendErr
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case sendErr := <-done:
			return sendErr
		}
	})

	switch {
	case err == nil:
		return nil
	case stdErrors.Is(err, apperrors.ErrCircuitOpen),
		stdErrors.Is(err, telebot.ErrBlockedByUser),
		stdErrors.Is(err, telebot.ErrChatNotFound),
		stdErrors.Is(err, telebot.ErrUserIsDeactivated):
		return permanent(chatID, err)
	default:
		return apperrors.NewDeliveryError(chatID, err)
	}
}

func permanent(chatID int64, err error) error {
	appErr := apperrors.NewDeliveryError(chatID, err)
	appErr.Retryable = false
	return appErr
}
