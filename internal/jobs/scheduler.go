package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	spec           string
	remindAfter    time.Duration
	log            *slog.Logger
}

// NewScheduler enqueues the pending order reminder on the cron spec.
func NewScheduler(redisOpt asynq.RedisConnOpt, spec string, remindAfter time.Duration, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			EnqueueErrorHandler: func(task *asynq.Task, _ []asynq.Option, err error) {
				log.Error("scheduler: failed to enqueue task", slog.String("task_type", task.Type()), slog.Any("error", err))
			},
		}),
		spec:        spec,
		remindAfter: remindAfter,
		log:         log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewPendingReminderTask(s.remindAfter)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.spec, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered pending reminder task", slog.String("spec", s.spec))

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")

	s.asynqScheduler.Shutdown()
}
