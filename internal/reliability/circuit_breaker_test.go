package reliability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker(t *testing.T) {
	t.Run("starts in closed state", func(t *testing.T) {
		cb := NewCircuitBreaker()
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("executes function in closed state", func(t *testing.T) {
		cb := NewCircuitBreaker()
		executed := false

		err := cb.Execute(context.Background(), func() error {
			executed = true
			return nil
		})

		assert.NoError(t, err)
		assert.True(t, executed)
	})

	t.Run("transitions to open state after failure threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(3))

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.New("test error")
			})
			assert.Error(t, err)
		}

		assert.Equal(t, StateOpen, cb.GetState())

		err := cb.Execute(context.Background(), func() error {
			return nil
		})
		var cbErr *CircuitBreakerError
		assert.ErrorAs(t, err, &cbErr)
		assert.Equal(t, StateOpen, cbErr.State)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("closes again after a successful half-open call", func(t *testing.T) {
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithTimeout(20*time.Millisecond),
		)

		_ = cb.Execute(context.Background(), func() error {
			return errors.New("test error")
		})
		assert.Equal(t, StateOpen, cb.GetState())

		time.Sleep(40 * time.Millisecond)

		err := cb.Execute(context.Background(), func() error {
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("reports state changes", func(t *testing.T) {
		var mu sync.Mutex
		var changes []State
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithStateChange(func(name string, from, to State, reason string) {
				mu.Lock()
				defer mu.Unlock()
				changes = append(changes, to)
			}),
		)

		_ = cb.Execute(context.Background(), func() error {
			return errors.New("boom")
		})
		cb.Reset()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []State{StateOpen}, changes)
		assert.Equal(t, StateClosed, cb.GetState())
	})
}
