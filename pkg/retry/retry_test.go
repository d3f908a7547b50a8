package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("number taken")

func fastOpts(maxAttempts int) []Option {
	return []Option{
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(time.Microsecond),
		WithMaxDelay(time.Microsecond),
		WithJitter(0),
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, fastOpts(5)...)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errConflict)
		}
		return nil
	}, fastOpts(5)...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustionIsTyped(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errConflict)
	}, fastOpts(10)...)

	require.Error(t, err)
	assert.Equal(t, 10, calls)
	assert.True(t, IsExhausted(err))

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 10, exhausted.Attempts)
	assert.ErrorIs(t, exhausted.Err, errConflict)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	permanent := errors.New("user already has a number")
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(permanent)
	}, fastOpts(10)...)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
	assert.False(t, IsExhausted(err))
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	plain := errors.New("plain failure")
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return plain
	}, fastOpts(10)...)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, plain)
}

func TestDo_RetryIfPredicate(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errConflict
	}, append(fastOpts(3), WithRetryIf(func(err error) bool {
		return errors.Is(err, errConflict)
	}))...)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsExhausted(err))
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	}, fastOpts(3)...)

	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", Retryable(errConflict)
		}
		return "STU-4F2A9C1B", nil
	}, fastOpts(5)...)

	require.NoError(t, err)
	assert.Equal(t, "STU-4F2A9C1B", got)
}

func TestOnRetryCallback(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errConflict)
	}, append(fastOpts(3), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}))...)

	require.Error(t, err)
	// Called before each retry, not after the final attempt.
	assert.Equal(t, []int{1, 2}, attempts)
}
