package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	backendRedis    = "redis"
	backendFallback = "fallback"
)

var (
	rateLimitChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	rateLimitRedisErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_redis_errors_total",
		Help: "Redis failures that sent a check to the in-memory fallback.",
	})

	rateLimitDegraded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ratelimit_degraded",
		Help: "1 while checks are served by the in-memory fallback.",
	})
)

func init() {
	prometheus.MustRegister(rateLimitChecksTotal, rateLimitRedisErrorsTotal, rateLimitDegraded)
}

// AdaptiveLimiter delegates to a shared Redis limiter and, while Redis fails,
// to a local limiter with half the budget. Each process then enforces its own
// share, so the tighter limit keeps a fleet close to the shared one.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
	degraded atomic.Bool
}

// NewAdaptiveLimiter creates a limiter that adapts between Redis and in-memory backends.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		if a.degraded.CompareAndSwap(true, false) {
			rateLimitDegraded.Set(0)
			a.log.Info("redis rate limiter recovered")
		}
		rateLimitChecksTotal.WithLabelValues(backendRedis, resultLabel(err)).Inc()
		return result, err
	}

	rateLimitRedisErrorsTotal.Inc()
	if a.degraded.CompareAndSwap(false, true) {
		rateLimitDegraded.Set(1)
		a.log.Warn("redis rate limiter failed, using in-memory fallback", slog.String("key", key), slog.Any("error", err))
	}

	result, err = a.fallback.Check(ctx, key, max(limit/2, 1), window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return result, err
	}
	rateLimitChecksTotal.WithLabelValues(backendFallback, resultLabel(err)).Inc()
	return result, err
}

func resultLabel(err error) string {
	if err != nil {
		return "rejected"
	}
	return "allowed"
}
