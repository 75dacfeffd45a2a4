package reliability

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	t.Run("creates with correct defaults", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, 5*time.Second, 2.0, 3)

		assert.Equal(t, 100*time.Millisecond, eb.InitialInterval)
		assert.Equal(t, 5*time.Second, eb.MaxInterval)
		assert.Equal(t, 2.0, eb.Multiplier)
		assert.Equal(t, 3, eb.MaxAttempts)
		assert.True(t, eb.Jitter)
	})

	t.Run("ShouldRetry respects max retries", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, time.Second, 2.0, 3)

		for i := 0; i < 3; i++ {
			shouldRetry, delay := eb.ShouldRetry(i, errors.New("test"))
			assert.True(t, shouldRetry)
			assert.Greater(t, delay, time.Duration(0))
		}

		shouldRetry, delay := eb.ShouldRetry(3, errors.New("test"))
		assert.False(t, shouldRetry)
		assert.Equal(t, time.Duration(0), delay)
	})

	t.Run("NextDelay calculates exponential backoff", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, time.Second, 2.0, 5)
		eb.Jitter = false

		tests := []struct {
			attempt  int
			expected time.Duration
		}{
			{0, 100 * time.Millisecond},
			{1, 200 * time.Millisecond},
			{2, 400 * time.Millisecond},
			{3, 800 * time.Millisecond},
			{4, time.Second},
		}

		for _, tt := range tests {
			assert.Equal(t, tt.expected, eb.NextDelay(tt.attempt), "attempt %d", tt.attempt)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		eb := NewExponentialBackoff(time.Millisecond, time.Millisecond, 2.0, 3)

		shouldRetry, _ := eb.ShouldRetry(0, Permanent(errors.New("bad request")))
		assert.False(t, shouldRetry)

		shouldRetry, _ = eb.ShouldRetry(0, ErrNonRetryable)
		assert.False(t, shouldRetry)
	})
}

func TestRetry(t *testing.T) {
	t.Run("returns nil after eventual success", func(t *testing.T) {
		var calls int32
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 3), func() error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return errors.New("temporary")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("wraps last error once attempts are exhausted", func(t *testing.T) {
		cause := errors.New("still down")
		var calls int32
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 2), func() error {
			atomic.AddInt32(&calls, 1)
			return cause
		})

		require.Error(t, err)
		var retryErr *RetryError
		require.ErrorAs(t, err, &retryErr)
		assert.Equal(t, 3, retryErr.Attempts)
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.False(t, IsRetryableError(err))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("returns the error unchanged when it is not retryable", func(t *testing.T) {
		cause := Permanent(errors.New("invalid"))
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 5), func() error {
			return cause
		})

		assert.Equal(t, cause, err)
		assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls int32
		err := Retry(ctx, NewFixedDelay(50*time.Millisecond, 10), func() error {
			if atomic.AddInt32(&calls, 1) == 1 {
				cancel()
			}
			return errors.New("fail")
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("NoRetry calls once", func(t *testing.T) {
		var calls int32
		_ = Retry(context.Background(), NoRetry, func() error {
			atomic.AddInt32(&calls, 1)
			return errors.New("fail")
		})
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}
