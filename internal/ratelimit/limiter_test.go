package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryLimiter(now *time.Time) *MemoryLimiter {
	limiter := NewMemoryLimiter(testLogger()).(*MemoryLimiter)
	limiter.now = func() time.Time { return *now }
	return limiter
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestMemoryLimiter(&now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, UserKey(1001), 3, 2*time.Second)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, UserKey(1001), 3, 2*time.Second)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Zero(t, result.Remaining)
	assert.Equal(t, 2*time.Second, result.RetryAfter(now))

	other, err := limiter.Check(ctx, UserKey(2002), 3, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(2*time.Second + time.Millisecond)
	result, err = limiter.Check(ctx, UserKey(1001), 3, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Remaining)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestMemoryLimiter(&now)
	ctx := context.Background()

	_, err := limiter.Check(ctx, UserKey(1), 5, time.Minute)
	require.NoError(t, err)
	now = now.Add(10 * time.Minute)
	_, err = limiter.Check(ctx, UserKey(2), 5, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, limiter.Cleanup(5*time.Minute))
	assert.Zero(t, limiter.Cleanup(0))
	assert.Len(t, limiter.buckets, 1)
}

func TestResult_RetryAfter(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		result *Result
		want   time.Duration
	}{
		{name: "nil", result: nil, want: time.Second},
		{name: "no reset", result: &Result{}, want: time.Second},
		{name: "already passed", result: &Result{ResetAt: now.Add(-time.Second)}, want: time.Second},
		{name: "rounds up", result: &Result{ResetAt: now.Add(2100 * time.Millisecond)}, want: 3 * time.Second},
		{name: "whole seconds", result: &Result{ResetAt: now.Add(time.Minute)}, want: time.Minute},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.result.RetryAfter(now))
		})
	}
}

type stubLimiter struct {
	err    error
	limits []int
}

func (s *stubLimiter) Check(_ context.Context, _ string, limit int, window time.Duration) (*Result, error) {
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return nil, s.err
	}
	return &Result{Allowed: true, Remaining: limit - 1, ResetAt: time.Now().Add(window)}, nil
}

func TestAdaptiveLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("uses redis while it works", func(t *testing.T) {
		primary, fallback := &stubLimiter{}, &stubLimiter{}
		limiter := NewAdaptiveLimiter(primary, fallback, testLogger())

		result, err := limiter.Check(ctx, UserKey(1), 10, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, []int{10}, primary.limits)
		assert.Empty(t, fallback.limits)
	})

	t.Run("redis rejection is final", func(t *testing.T) {
		primary, fallback := &stubLimiter{err: ErrLimitExceeded}, &stubLimiter{}
		limiter := NewAdaptiveLimiter(primary, fallback, testLogger())

		_, err := limiter.Check(ctx, UserKey(1), 10, time.Second)
		assert.ErrorIs(t, err, ErrLimitExceeded)
		assert.Empty(t, fallback.limits)
	})

	t.Run("falls back with half the budget", func(t *testing.T) {
		primary, fallback := &stubLimiter{err: errors.New("connection refused")}, &stubLimiter{}
		limiter := NewAdaptiveLimiter(primary, fallback, testLogger()).(*AdaptiveLimiter)

		_, err := limiter.Check(ctx, UserKey(1), 10, time.Second)
		require.NoError(t, err)
		_, err = limiter.Check(ctx, UserKey(1), 1, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 1}, fallback.limits)
		assert.True(t, limiter.degraded.Load())

		primary.err = nil
		_, err = limiter.Check(ctx, UserKey(1), 10, time.Second)
		require.NoError(t, err)
		assert.False(t, limiter.degraded.Load())
	})
}
