package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/ratelimit"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeContext struct {
	telebot.Context

	sender    *telebot.User
	text      string
	callback  *telebot.Callback
	sent      []string
	responses []*telebot.CallbackResponse
}

func (c *fakeContext) Sender() *telebot.User       { return c.sender }
func (c *fakeContext) Text() string                { return c.text }
func (c *fakeContext) Callback() *telebot.Callback { return c.callback }
func (c *fakeContext) Get(string) interface{}      { return nil }
func (c *fakeContext) Set(string, interface{})     {}

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

func (c *fakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func newRateLimit(cfg config.RateLimitConfig) *RateLimitMiddleware {
	cfg.Enabled = true
	return NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(testLogger()), ratelimit.NewRules(cfg), testLogger())
}

func TestRateLimitMiddleware_PerUser(t *testing.T) {
	m := newRateLimit(config.RateLimitConfig{
		PerUser: config.RateLimitRule{Limit: 2, Window: "1m"},
		Global:  config.RateLimitRule{Limit: 100, Window: "1m"},
	})

	calls := 0
	h := m.Handle(func(telebot.Context) error {
		calls++
		return nil
	})

	c := &fakeContext{sender: &telebot.User{ID: 1001}, text: "60 UC"}
	for i := 0; i < 3; i++ {
		require.NoError(t, h(c))
	}
	assert.Equal(t, 2, calls)
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "Too many requests")

	other := &fakeContext{sender: &telebot.User{ID: 2002}}
	require.NoError(t, h(other))
	assert.Equal(t, 3, calls)
}

func TestRateLimitMiddleware_CommandAndCallback(t *testing.T) {
	m := newRateLimit(config.RateLimitConfig{
		PerUser:  config.RateLimitRule{Limit: 100, Window: "1m"},
		Global:   config.RateLimitRule{Limit: 100, Window: "1m"},
		Commands: map[string]config.RateLimitRule{"topup": {Limit: 1, Window: "1m"}},
	})

	h := m.Handle(func(telebot.Context) error { return nil })

	c := &fakeContext{sender: &telebot.User{ID: 1001}, text: "/topup@storefront_bot"}
	require.NoError(t, h(c))
	require.NoError(t, h(c))
	assert.Len(t, c.sent, 1)

	// buttons only count against the per-user and global limits
	cb := &fakeContext{sender: &telebot.User{ID: 1001}, callback: &telebot.Callback{Data: "topup:"}}
	require.NoError(t, h(cb))
	assert.Empty(t, cb.responses)
}

func TestRateLimitMiddleware_WhitelistAndDisabled(t *testing.T) {
	cfg := config.RateLimitConfig{
		Whitelist: []int64{7},
		PerUser:   config.RateLimitRule{Limit: 1, Window: "1m"},
		Global:    config.RateLimitRule{Limit: 100, Window: "1m"},
	}
	h := newRateLimit(cfg).Handle(func(telebot.Context) error { return nil })

	admin := &fakeContext{sender: &telebot.User{ID: 7}}
	require.NoError(t, h(admin))
	require.NoError(t, h(admin))
	assert.Empty(t, admin.sent)

	blocked := &fakeContext{sender: &telebot.User{ID: 1001}, callback: &telebot.Callback{Data: "menu:"}}
	require.NoError(t, h(blocked))
	require.NoError(t, h(blocked))
	require.Len(t, blocked.responses, 1)
	assert.Contains(t, blocked.responses[0].Text, "Too many requests")

	off := NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(testLogger()), ratelimit.NewRules(cfg), testLogger())
	called := false
	require.NoError(t, off.Handle(func(telebot.Context) error { called = true; return nil })(blocked))
	assert.True(t, called)
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start ref2002", "start"},
		{"/TopUp@storefront_bot", "topup"},
		{"hello", ""},
		{"  /balance  ", "balance"},
		{"", ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			c := &fakeContext{text: tc.text}
			assert.Equal(t, tc.want, commandName(c))
		})
	}
}
