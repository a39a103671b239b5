package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papergen/papergen-be/internal/generator"
)

func TestRetryPolicy_Delay(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      0,
	}

	assert.Equal(t, 1*time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 4*time.Second, policy.Delay(3))
	assert.Equal(t, 8*time.Second, policy.Delay(4))
	// capped
	assert.Equal(t, 10*time.Second, policy.Delay(5))
	assert.Equal(t, 10*time.Second, policy.Delay(20))
}

func TestRetryPolicy_DelayJitterBounds(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay: time.Second,
		MaxDelay:  10 * time.Second,
		Jitter:    0.25,
		randFloat: func() float64 { return 1.0 },
	}
	assert.Equal(t, 1250*time.Millisecond, policy.Delay(1))

	policy.randFloat = func() float64 { return 0 }
	assert.Equal(t, time.Second, policy.Delay(1))
}

func TestRetryPolicy_Do(t *testing.T) {
	logger := slog.Default()

	t.Run("transient errors exhaust attempts with growing delays", func(t *testing.T) {
		var delays []time.Duration
		policy := RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			Jitter:      0,
			Sleep: func(_ context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			},
		}

		calls := 0
		err := policy.Do(context.Background(), logger, "topic_analysis", func(context.Context) error {
			calls++
			return generator.Transient("topic_analysis", errors.New("rate limited"))
		})

		require.Error(t, err)
		assert.True(t, generator.IsTransient(err))
		assert.Equal(t, 3, calls)
		// Two sleeps between three attempts, never decreasing.
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	})

	t.Run("fatal error stops immediately", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Sleep: func(context.Context, time.Duration) error {
				t.Fatal("no sleep expected after fatal error")
				return nil
			},
		}

		calls := 0
		err := policy.Do(context.Background(), logger, "question_drafting", func(context.Context) error {
			calls++
			return generator.Fatal("question_drafting", errors.New("unprocessable"))
		})

		require.Error(t, err)
		assert.False(t, generator.IsTransient(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("infrastructure error stops immediately", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

		calls := 0
		infraErr := errors.New("connection refused")
		err := policy.Do(context.Background(), logger, "topic_analysis", func(context.Context) error {
			calls++
			return infraErr
		})

		assert.ErrorIs(t, err, infraErr)
		assert.Equal(t, 1, calls)
	})

	t.Run("success after transient failures", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		}

		calls := 0
		err := policy.Do(context.Background(), logger, "topic_analysis", func(context.Context) error {
			calls++
			if calls < 3 {
				return generator.Transient("topic_analysis", errors.New("flaky"))
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("canceled context aborts between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		policy := RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Sleep: func(ctx context.Context, _ time.Duration) error {
				cancel()
				return ctx.Err()
			},
		}

		calls := 0
		err := policy.Do(ctx, logger, "topic_analysis", func(context.Context) error {
			calls++
			return generator.Transient("topic_analysis", errors.New("flaky"))
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
