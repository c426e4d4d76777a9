package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		m.log.ErrorContext(ctx, "jobs: enqueue failed", slog.String("task_type", task.Type()), slog.Any("error", err))
		return nil, err
	}
	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}

// EnqueueStartupReminder reminds admins shortly after boot about orders left
// pending across the restart, instead of waiting for the first tick.
func EnqueueStartupReminder(ctx context.Context, m Manager, olderThan, delay time.Duration) error {
	task, err := NewPendingReminderTask(olderThan)
	if err != nil {
		return err
	}

	_, err = m.Enqueue(ctx, task, asynq.ProcessIn(delay))
	return err
}
