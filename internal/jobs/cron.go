package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronRunner runs jobs in process when no Redis is available for asynq.
type CronRunner struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewCronRunner returns an idle runner; add jobs with Every.
func NewCronRunner(log *slog.Logger) *CronRunner {
	if log == nil {
		log = slog.Default()
	}

	return &CronRunner{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log,
	}
}

// Every schedules fn on a cron spec such as "@every 15m".
func (r *CronRunner) Every(ctx context.Context, spec, name string, fn func(ctx context.Context) error) error {
	_, err := r.cron.AddFunc(spec, func() {
		if err := fn(ctx); err != nil {
			r.log.Error("cron job failed", slog.String("job", name), slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (r *CronRunner) Start() {
	r.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (r *CronRunner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
