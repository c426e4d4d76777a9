package ratelimit

import (
	"errors"
	"strings"
	"time"

	"github.com/Proton-105/storefront-bot/pkg/config"
)

// ErrNoRule is returned when no limit is configured for an action.
var ErrNoRule = errors.New("no rate limit rule")

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether limits are enforced at all.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// GetCommandLimit returns the limit and window for a command such as "/promo" or "promo".
func (r *Rules) GetCommandLimit(command string) (int, time.Duration, error) {
	name := strings.ToLower(strings.TrimPrefix(command, "/"))
	rule, ok := r.config.Commands[name]
	if !ok {
		return 0, 0, ErrNoRule
	}
	return parseRule(rule)
}

// GetGlobalLimit returns the global rate limiting rule.
func (r *Rules) GetGlobalLimit() (int, time.Duration, error) {
	return parseRule(r.config.Global)
}

// GetPerUserLimit returns the per-user rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerUser)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if rule.Limit <= 0 {
		return 0, 0, ErrNoRule
	}
	return rule.Limit, window, nil
}
