package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearBackoffGrowsPerAttempt(t *testing.T) {
	backoff := Linear(time.Second)

	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 3*time.Second, backoff(3))
	assert.Equal(t, time.Second, backoff(0))
}

func TestDoStopsOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, Backoff: Constant(time.Millisecond)}, func(ctx context.Context, attempt int) error {
		calls++
		if attempt == 2 {
			return nil
		}
		return errors.New("boom")
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoReturnsLastErrorAfterExhaustion(t *testing.T) {
	calls := 0
	lastErr := errors.New("attempt 3 failed")
	err := Do(context.Background(), Policy{MaxAttempts: 3, Backoff: Constant(time.Millisecond)}, func(ctx context.Context, attempt int) error {
		calls++
		if attempt == 3 {
			return lastErr
		}
		return errors.New("earlier failure")
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, lastErr, err)
}

func TestDoDoesNotSleepAfterFinalAttempt(t *testing.T) {
	start := time.Now()
	err := Do(context.Background(), Policy{MaxAttempts: 2, Backoff: Constant(20 * time.Millisecond)}, func(ctx context.Context, attempt int) error {
		return errors.New("boom")
	})

	require.Error(t, err)
	// one pause between the two attempts, none after the second
	assert.Less(t, time.Since(start), 60*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Policy{MaxAttempts: 5, Backoff: Constant(time.Minute)}, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
