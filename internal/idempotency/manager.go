package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

const (
	defaultProcessingTTL = 5 * time.Minute
	defaultCompletedTTL  = 24 * time.Hour
)

// Operation is the work guarded by a key.
type Operation func(ctx context.Context) error

// Manager runs each operation at most once per key.
type Manager interface {
	// Execute runs fn unless key was already completed. It reports whether fn ran.
	// A failed operation releases its key so a redelivery may try again.
	Execute(ctx context.Context, key string, fn Operation) (bool, error)
}

type manager struct {
	store         Store
	processingTTL time.Duration
	completedTTL  time.Duration
	log           *slog.Logger
}

func NewManager(store Store, completedTTL time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if completedTTL <= 0 {
		completedTTL = defaultCompletedTTL
	}

	return &manager{
		store:         store,
		processingTTL: defaultProcessingTTL,
		completedTTL:  completedTTL,
		log:           log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, fn Operation) (bool, error) {
	if fn == nil {
		return false, errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Claim(ctx, key, m.processingTTL)
	if err != nil {
		return false, err
	}

	if !claimed {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if record != nil && record.Status == StatusCompleted {
			m.log.Debug("duplicate update skipped", slog.String("key", key))
			return false, nil
		}
		return false, ErrRequestInProgress
	}

	if err := fn(ctx); err != nil {
		if relErr := m.store.Release(context.WithoutCancel(ctx), key); relErr != nil {
			m.log.Warn("failed to release idempotency key", slog.String("key", key), slog.Any("error", relErr))
		}
		return true, err
	}

	if err := m.store.Complete(context.WithoutCancel(ctx), key, m.completedTTL); err != nil {
		// the work is done; a redelivery inside the processing TTL is still rejected
		m.log.Warn("failed to mark idempotency key completed", slog.String("key", key), slog.Any("error", err))
	}
	return true, nil
}
