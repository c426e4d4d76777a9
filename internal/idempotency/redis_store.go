package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "idempotency:"
	sweepCount  = 100
	fieldStatus = "status"
	fieldAt     = "updated_at"
)

type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, recordKey(key), StatusProcessing, ttl).Result()
	if err != nil {
		s.log.Error("failed to claim idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return claimed, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	status, err := s.client.Get(ctx, recordKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	record := &Record{Status: status}
	if at, err := s.client.Get(ctx, recordKey(key)+":"+fieldAt).Int64(); err == nil {
		record.UpdatedAt = time.UnixMilli(at).UTC()
	}
	return record, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(key), StatusCompleted, ttl)
		pipe.Set(ctx, recordKey(key)+":"+fieldAt, strconv.FormatInt(time.Now().UnixMilli(), 10), ttl)
		return nil
	})
	if err != nil {
		s.log.Error("failed to complete idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordKey(key), recordKey(key)+":"+fieldAt).Err(); err != nil {
		s.log.Error("failed to release idempotency key", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

// Sweep removes keys that lost their TTL.
func (s *RedisStore) Sweep(ctx context.Context, _ time.Time) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", sweepCount).Result()
		if err != nil {
			return removed, err
		}

		for _, key := range keys {
			ttl, err := s.client.TTL(ctx, key).Result()
			if err != nil {
				s.log.Warn("failed to get key ttl", slog.String("key", key), slog.Any("error", err))
				continue
			}
			// -1 means no expiry; -2 means the key vanished meanwhile
			if ttl != -1 {
				continue
			}
			if err := s.client.Del(ctx, key).Err(); err != nil {
				s.log.Warn("failed to delete stale idempotency key", slog.String("key", key), slog.Any("error", err))
				continue
			}
			removed++
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func recordKey(key string) string {
	return keyPrefix + key
}
