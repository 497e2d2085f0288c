package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithLog_ExhaustsAttempts(t *testing.T) {
	var logged []int
	err := DoWithLog(context.Background(), fastConfig(3), "postgres", func() error {
		return errors.New("connection refused")
	}, func(attempt int, err error, nextDelay time.Duration) {
		logged = append(logged, attempt)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: max retry attempts (3) exceeded")
	assert.Equal(t, []int{1, 2}, logged)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(5), func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
