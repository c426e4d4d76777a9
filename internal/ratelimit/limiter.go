package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// keyPrefix namespaces limiter buckets in Redis.
const keyPrefix = "ratelimit:"

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest counted hit leaves the window.
	ResetAt time.Time
}

// RetryAfter is the wait until the next hit can be allowed, rounded up to a
// whole second and never shorter than one.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r == nil || r.ResetAt.IsZero() {
		return time.Second
	}

	secs := math.Ceil(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// Limiter counts hits per key over a sliding window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// GlobalKey is the bucket shared by every non-whitelisted user.
func GlobalKey() string {
	return "global"
}

// UserKey is the per-user bucket.
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// CommandKey is the bucket of one command for one user.
func CommandKey(command string, userID int64) string {
	return fmt.Sprintf("cmd:%s:%d", command, userID)
}
