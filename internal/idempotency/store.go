package idempotency

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Record is what a store keeps per claimed key.
type Record struct {
	Status    string
	UpdatedAt time.Time
}

// Store holds claims on update keys. Every stored key expires.
type Store interface {
	// Claim marks key as processing unless it is already known and reports whether it did.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Complete(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	// Sweep drops entries that would otherwise never expire and returns how many.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Key joins parts into a store key, e.g. Key("update", 42) is "update:42".
func Key(parts ...any) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		switch v := part.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteString(strconv.Itoa(v))
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		default:
			b.WriteString("?")
		}
	}
	return b.String()
}
