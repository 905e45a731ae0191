package resiliency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestRetryGetSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	val, err := RetryGet(context.Background(), backoff.NewConstantBackOff(time.Millisecond),
		func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("not ready")
			}
			return 42, nil
		})
	require.NoError(t, err)
	require.Equal(t, 42, val)
	require.Equal(t, 3, attempts)
}

func TestRetryGetStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("fatal")
	attempts := 0
	_, err := RetryGet(context.Background(), backoff.NewConstantBackOff(time.Millisecond),
		func() (string, error) {
			attempts++
			return "", backoff.Permanent(permanent)
		})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, attempts)
}

func TestRetryGetJoinsDeadlineWithLastAttemptError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attemptErr := errors.New("pipe busy")
	_, err := RetryGet(ctx, backoff.NewConstantBackOff(5*time.Millisecond),
		func() (int, error) { return 0, attemptErr })

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, attemptErr)
}

func TestRunWithTimeout(t *testing.T) {
	require.True(t, RunWithTimeout(func() {}, time.Second))
	require.False(t, RunWithTimeout(func() { time.Sleep(time.Second) }, 10*time.Millisecond))
}
