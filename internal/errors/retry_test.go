package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return fmt.Errorf("persistent")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt plus two retries
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetryConfig(3), func() error {
		calls++
		return fmt.Errorf("never reached")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRetry_ContextCancelledMidRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		return fmt.Errorf("always")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_NonRetryableAbortsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		return ShardCorrupt("family_law", "count mismatch")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrCodeShardCorrupt, GetCode(err))
}

func TestRetry_RetryableJurisErrorKeepsRetrying(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return WriteConflict("family_law")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResult(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, fmt.Errorf("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRetryWithResult_ExhaustedReturnsZero(t *testing.T) {
	got, err := RetryWithResult(context.Background(), fastRetryConfig(1), func() (string, error) {
		return "partial", fmt.Errorf("persistent")
	})

	require.Error(t, err)
	assert.Empty(t, got)
}

func TestWriterRetryConfig(t *testing.T) {
	cfg := WriterRetryConfig()

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.True(t, cfg.Jitter)
	assert.Less(t, cfg.InitialDelay, time.Second)
}
