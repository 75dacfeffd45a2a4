package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrEmptyKey is returned when a persistent store is created without a key
	ErrEmptyKey = errors.New("storage: key cannot be empty")
)

// Storage persists a single value.
type Storage[T any] interface {
	// Get returns the stored value. ok is false when nothing is stored.
	Get(ctx context.Context) (value T, ok bool, err error)
	// Save replaces the stored value.
	Save(ctx context.Context, value T) error
	// Delete removes the stored value. Deleting an empty store is not an error.
	Delete(ctx context.Context) error
}

// Error describes a failed storage operation
type Error struct {
	Op      string
	Backend string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage: %s %s failed for key %s: %v", e.Backend, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage: %s %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Memory keeps the value in process memory.
type Memory[T any] struct {
	mu    sync.RWMutex
	value T
	ok    bool
}

var _ Storage[string] = (*Memory[string])(nil)

// NewMemory creates an empty in-memory store
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{}
}

func (m *Memory[T]) Get(ctx context.Context) (T, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.ok, nil
}

func (m *Memory[T]) Save(ctx context.Context, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.ok = true
	return nil
}

func (m *Memory[T]) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.ok = false
	return nil
}

func encode[T any](value T) ([]byte, error) {
	return json.Marshal(value)
}

func decode[T any](data []byte) (T, error) {
	var value T
	err := json.Unmarshal(data, &value)
	return value, err
}
