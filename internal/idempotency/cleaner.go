package idempotency

import (
	"context"
	"log/slog"
	"time"
)

type Cleaner struct {
	store    Store
	log      *slog.Logger
	interval time.Duration
}

func NewCleaner(store Store, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return &Cleaner{
		store:    store,
		log:      log,
		interval: interval,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Cleanup(ctx, now)
		}
	}
}

// Cleanup runs one sweep and returns the number of removed entries.
func (c *Cleaner) Cleanup(ctx context.Context, now time.Time) int {
	removed, err := c.store.Sweep(ctx, now)
	if err != nil {
		c.log.Error("idempotency sweep failed", slog.Any("error", err))
	}
	if removed > 0 {
		c.log.Info("idempotency keys removed", slog.Int("count", removed))
	}
	return removed
}
