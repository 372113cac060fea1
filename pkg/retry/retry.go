// Package retry provides a small bounded-retry combinator so retry policy
// can be tested independently of the operations it wraps.
package retry

import (
	"context"
	"time"
)

// Backoff computes the pause before the next attempt. The attempt argument
// is the 1-based number of the attempt that just failed.
type Backoff func(attempt int) time.Duration

// Linear returns a backoff that grows by step per failed attempt (step, 2*step, ...).
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return step * time.Duration(attempt)
	}
}

// Constant returns a fixed backoff between attempts.
func Constant(pause time.Duration) Backoff {
	return func(int) time.Duration {
		return pause
	}
}

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
}

// Do invokes fn up to MaxAttempts times, sleeping per the backoff between
// attempts but never after the last one. The first nil error wins; otherwise
// the last error is returned. Context cancellation aborts the wait and
// returns the context error.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		pause := time.Duration(0)
		if policy.Backoff != nil {
			pause = policy.Backoff(attempt)
		}
		if pause <= 0 {
			continue
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
