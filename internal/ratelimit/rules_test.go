package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/pkg/config"
)

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		Whitelist: []int64{7},
		PerUser:   config.RateLimitRule{Limit: 30, Window: "1m"},
		Global:    config.RateLimitRule{Limit: 0, Window: "1s"},
		Commands: map[string]config.RateLimitRule{
			"promo": {Limit: 5, Window: "10m"},
			"topup": {Limit: 3, Window: "bogus"},
		},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted(7))
	assert.False(t, rules.IsWhitelisted(8))

	limit, window, err := rules.GetPerUserLimit()
	require.NoError(t, err)
	assert.Equal(t, 30, limit)
	assert.Equal(t, time.Minute, window)

	limit, window, err = rules.GetCommandLimit("/promo")
	require.NoError(t, err)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 10*time.Minute, window)

	_, _, err = rules.GetCommandLimit("shop")
	assert.ErrorIs(t, err, ErrNoRule)

	_, _, err = rules.GetCommandLimit("topup")
	assert.Error(t, err)

	_, _, err = rules.GetGlobalLimit()
	assert.ErrorIs(t, err, ErrNoRule, "a zero limit disables the rule")

	var disabled *Rules
	assert.False(t, disabled.Enabled())
}
