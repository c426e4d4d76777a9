package middleware

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces global, per-user and per-command limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
	now     func() time.Time
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
		now:     time.Now,
	}
}

type limitCheck struct {
	key   string
	limit func() (int, time.Duration, error)
}

// Handle returns a telebot middleware that rejects updates over any configured limit.
// Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		userID := sender.ID
		if m.rules.IsWhitelisted(userID) {
			return next(c)
		}

		checks := []limitCheck{
			{key: ratelimit.GlobalKey(), limit: m.rules.GetGlobalLimit},
			{key: ratelimit.UserKey(userID), limit: m.rules.GetPerUserLimit},
		}
		if cmd := commandName(c); cmd != "" {
			checks = append(checks, limitCheck{
				key:   ratelimit.CommandKey(cmd, userID),
				limit: func() (int, time.Duration, error) { return m.rules.GetCommandLimit(cmd) },
			})
		}

		ctx := handlers.RequestContext(c)
		for _, check := range checks {
			limit, window, err := check.limit()
			if err != nil {
				if !errors.Is(err, ratelimit.ErrNoRule) {
					m.log.Error("invalid rate limit rule", slog.String("key", check.key), slog.Any("error", err))
				}
				continue
			}

			result, err := m.limiter.Check(ctx, check.key, limit, window)
			if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
				m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
				continue
			}
			if err == nil && result != nil && result.Allowed {
				continue
			}

			m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID), slog.String("key", check.key))
			return m.reject(c, result)
		}

		return next(c)
	}
}

func (m *RateLimitMiddleware) reject(c telebot.Context, result *ratelimit.Result) error {
	retryAfter := int(result.RetryAfter(m.now()) / time.Second)
	msg := apperrors.NewRateLimitError(retryAfter).UserMessage
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: msg})
	}
	return c.Send(msg)
}

func commandName(c telebot.Context) string {
	if c.Callback() != nil {
		return ""
	}
	text := strings.TrimSpace(c.Text())
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(strings.TrimPrefix(cmd, "/"))
}
