// Package retry implements the per-node retry policy and the per-node-type
// circuit breaker: exponential backoff with jitter around a retry
// loop, and a shared breaker that trips after a sliding-window failure
// ratio is exceeded.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/casarerpa/engine/engine/core"
)

// Policy holds the per-node retry knobs applied around any retryable
// node call.
type Policy struct {
	MaxAttempts int
	DelayStart  time.Duration
	DelayMax    time.Duration
	Jitter      time.Duration
}

// DefaultPolicy is used when a node's config declares no retry block.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		DelayStart:  500 * time.Millisecond,
		DelayMax:    5 * time.Second,
		Jitter:      100 * time.Millisecond,
	}
}

// Do runs fn at most p.MaxAttempts times, retrying with exponential
// backoff and jitter when fn returns a retryable error. fn should wrap
// recoverable failures in retry.RetryableError (re-exported as Retryable)
// so the backoff loop can distinguish them from terminal failures.
// MaxAttempts counts every call including the first, so a policy of 1
// never retries; the backoff library counts retries after the first call,
// hence the -1 below.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := retry.NewExponential(p.DelayStart)
	backoff = retry.WithCappedDuration(p.DelayMax, backoff)
	backoff = retry.WithJitter(p.Jitter, backoff)
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff) //nolint:gosec
	if err := retry.Do(ctx, backoff, fn); err != nil {
		return core.NewError(err, core.ErrNode, map[string]any{"retryable": false, "max_attempts": p.MaxAttempts})
	}
	return nil
}

// Retryable marks err as retryable for the current Do call's backoff loop.
func Retryable(err error) error { return retry.RetryableError(err) }
