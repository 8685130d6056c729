package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), 3, time.Millisecond, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("timeout")
		}
		return nil
	}, func(attempt int, err error) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, retried)
}

func TestDoExhausted(t *testing.T) {
	cause := errors.New("net::ERR_CONNECTION_REFUSED")
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(ctx context.Context, attempt int) error {
		calls++
		return cause
	})

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "failed after 3 attempts")
	require.Equal(t, 3, calls)
}

func TestDoPermanent(t *testing.T) {
	cause := errors.New("missing baseline")
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(ctx context.Context, attempt int) error {
		calls++
		return Stop(cause)
	})

	require.Equal(t, cause, err)
	require.Equal(t, 1, calls)
}

func TestDoContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 5, time.Hour, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 0, 0, func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}
