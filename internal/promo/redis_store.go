package promo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPattern = "promo:code:%s"
	usedKeyPattern = "promo:used:%s"
)

const (
	redeemNotFound = -1
	redeemUsed     = -2
	redeemNoUses   = -3
)

// KEYS[1] code hash, ARGV[1] amount, ARGV[2] uses
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "amount", ARGV[1], "uses_left", ARGV[2])
return 1
`)

// KEYS[1] code hash, KEYS[2] redeemed set, ARGV[1] user id
var redeemScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
if redis.call("SISMEMBER", KEYS[2], ARGV[1]) == 1 then
	return -2
end
if tonumber(redis.call("HGET", KEYS[1], "uses_left")) <= 0 then
	return -3
end
redis.call("HINCRBY", KEYS[1], "uses_left", -1)
redis.call("SADD", KEYS[2], ARGV[1])
return tonumber(redis.call("HGET", KEYS[1], "amount"))
`)

// KEYS[1] code hash, KEYS[2] redeemed set, ARGV[1] user id
var releaseScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
if redis.call("SREM", KEYS[2], ARGV[1]) == 1 then
	redis.call("HINCRBY", KEYS[1], "uses_left", 1)
end
return 1
`)

// RedisStore keeps promo codes in Redis: a hash per code with the amount and
// remaining uses, and a set of user ids that redeemed it.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Create(ctx context.Context, code string, amount int64, uses int) error {
	code, err := validateNew(code, amount, uses)
	if err != nil {
		return err
	}

	created, err := createScript.Run(ctx, s.client, []string{codeKey(code)}, amount, uses).Int()
	if err != nil {
		s.log.Error("failed to create promo code", slog.String("code", code), slog.Any("error", err))
		return fmt.Errorf("promo: create: %w", err)
	}
	if created == 0 {
		return ErrCodeExists
	}
	return nil
}

func (s *RedisStore) Redeem(ctx context.Context, code string, userID int64) (int64, error) {
	code, err := Normalize(code)
	if err != nil {
		return 0, err
	}

	res, err := redeemScript.Run(ctx, s.client, []string{codeKey(code), usedKey(code)}, userID).Int64()
	if err != nil {
		s.log.Error("failed to redeem promo code", slog.String("code", code), slog.Int64("user_id", userID), slog.Any("error", err))
		return 0, fmt.Errorf("promo: redeem: %w", err)
	}

	switch res {
	case redeemNotFound:
		return 0, ErrNotFound
	case redeemUsed:
		return 0, ErrAlreadyRedeemed
	case redeemNoUses:
		return 0, ErrExhausted
	}
	return res, nil
}

func (s *RedisStore) Release(ctx context.Context, code string, userID int64) error {
	code, err := Normalize(code)
	if err != nil {
		return err
	}

	res, err := releaseScript.Run(ctx, s.client, []string{codeKey(code), usedKey(code)}, userID).Int()
	if err != nil {
		s.log.Error("failed to release promo code", slog.String("code", code), slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("promo: release: %w", err)
	}
	if res == redeemNotFound {
		return ErrNotFound
	}
	return nil
}

func codeKey(code string) string {
	return fmt.Sprintf(codeKeyPattern, code)
}

func usedKey(code string) string {
	return fmt.Sprintf(usedKeyPattern, code)
}
