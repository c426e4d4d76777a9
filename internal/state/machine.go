package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "user:lock:%d"
	defaultLockTTL     = 30 * time.Second
	lockPollInterval   = 25 * time.Millisecond
	defaultLockWait    = 3 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that a concurrent operation held the lock for longer than the wait budget.
	ErrStateLocked = errors.New("state is locked, try again later")
)

// refreshScript extends the lock only while it still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the lock only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the FSM controller.
//
// GetState, SetState and ClearState do not lock on their own; callers that
// read-modify-write a session wrap the sequence in WithLock.
type StateMachine interface {
	GetState(ctx context.Context, userID int64) (*UserState, error)
	Current(ctx context.Context, userID int64) (*UserState, error)
	SetState(ctx context.Context, next *UserState) error
	ClearState(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
	WithLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error
}

// machine is a concrete implementation of StateMachine backed by Storage and
// a Redis lock, or an in-process lock when Redis is not configured.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
	local       *keyedMutex
	lockWait    time.Duration
	lockTTL     time.Duration
}

// Option customises a StateMachine.
type Option func(*machine)

// WithLockTTL sets the expiry of the Redis lock. The lock is refreshed every
// third of ttl while the holder runs, so ttl only bounds how long a crashed
// holder blocks the user.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *machine) {
		if ttl >= time.Millisecond {
			m.lockTTL = ttl
		}
	}
}

// NewStateMachine creates a FSM controller using the provided storage backend and redis client for locking.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client, lockWait time.Duration, opts ...Option) StateMachine {
	if log == nil {
		log = slog.Default()
	}
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}

	m := &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
		local:       newKeyedMutex(),
		lockWait:    lockWait,
		lockTTL:     defaultLockTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetState proxies to the underlying storage implementation.
func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	return m.storage.GetState(ctx, userID)
}

// Current returns the stored state, or an idle state when none exists.
func (m *machine) Current(ctx context.Context, userID int64) (*UserState, error) {
	st, err := m.storage.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return Idle(userID), nil
		}
		return nil, err
	}
	if st == nil {
		return Idle(userID), nil
	}
	return st, nil
}

// GetAllStates returns every persisted user state.
func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	return m.storage.GetAllStates(ctx)
}

// SetState validates the transition from the stored state and persists next.
// Moving to idle removes the stored session.
func (m *machine) SetState(ctx context.Context, next *UserState) error {
	if next == nil {
		return errors.New("state: nil session")
	}

	current, err := m.Current(ctx, next.UserID)
	if err != nil {
		return err
	}

	from, to := current.CurrentState, next.CurrentState
	if to == "" {
		to = StateIdle
	}

	if !IsTransitionAllowed(from, to) {
		m.log.Warn("invalid state transition", "user_id", next.UserID, "from", from, "to", to)
		return ErrInvalidTransition
	}

	if from != to {
		transitionRecorder(string(from), string(to))
	}

	if to == StateIdle {
		return m.storage.ClearState(ctx, next.UserID)
	}

	saved := next.Clone()
	saved.CurrentState = to
	return m.storage.SetState(ctx, next.UserID, saved)
}

// ClearState removes the stored state via the backing storage.
func (m *machine) ClearState(ctx context.Context, userID int64) error {
	return m.storage.ClearState(ctx, userID)
}

// WithLock runs fn while holding the per-user lock. It waits up to the
// configured budget for a concurrent holder before giving up with ErrStateLocked.
func (m *machine) WithLock(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	if m.redisClient == nil {
		unlock, err := m.local.lock(ctx, userID, m.lockWait)
		if err != nil {
			return err
		}
		defer unlock()
		return fn(ctx)
	}

	token, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer m.unlock(userID, token)

	stop := m.keepAlive(userID, token)
	defer stop()

	return fn(ctx)
}

// keepAlive refreshes the lock until the returned func is called, so a
// holder that outlives lockTTL does not let a second holder in.
func (m *machine) keepAlive(userID int64, token string) (stop func()) {
	key := fmt.Sprintf(userLockKeyPattern, userID)
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(m.lockTTL / 3)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				kept, err := refreshScript.Run(ctx, m.redisClient, []string{key}, token, m.lockTTL.Milliseconds()).Int()
				cancel()
				if err != nil {
					m.log.Error("failed to refresh user state lock", "user_id", userID, "error", err)
					continue
				}
				if kept == 0 {
					m.log.Warn("user state lock lost", "user_id", userID)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func (m *machine) lock(ctx context.Context, userID int64) (string, error) {
	key := fmt.Sprintf(userLockKeyPattern, userID)
	token := uuid.NewString()
	deadline := time.Now().Add(m.lockWait)

	for {
		acquired, err := m.redisClient.SetNX(ctx, key, token, m.lockTTL).Result()
		if err != nil {
			m.log.Error("failed to acquire user state lock", "user_id", userID, "error", err)
			return "", err
		}
		if acquired {
			return token, nil
		}

		if time.Now().After(deadline) {
			m.log.Warn("user state lock already held", "user_id", userID)
			return "", ErrStateLocked
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (m *machine) unlock(userID int64, token string) {
	// release even when the caller's context is already cancelled
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := fmt.Sprintf(userLockKeyPattern, userID)
	if err := releaseScript.Run(ctx, m.redisClient, []string{key}, token).Err(); err != nil {
		m.log.Error("failed to release user state lock", "user_id", userID, "error", err)
	}
}
