package orchestrate

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SharedContext is a concurrency-safe string keyed store shared between
// stage handlers. Keys are not namespaced; modules should prefix their own.
type SharedContext struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewSharedContext creates an empty context
func NewSharedContext() *SharedContext {
	return &SharedContext{
		values: make(map[string]any),
	}
}

// Set stores a value
func (c *SharedContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get retrieves a value
func (c *SharedContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, exists := c.values[key]
	return value, exists
}

// GetString retrieves a string value
func (c *SharedContext) GetString(key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Remove deletes a value and returns what was stored
func (c *SharedContext) Remove(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, exists := c.values[key]
	delete(c.values, key)
	return value, exists
}

// IsEmpty reports whether nothing is stored
func (c *SharedContext) IsEmpty() bool {
	return c.Len() == 0
}

// Len returns the number of stored values
func (c *SharedContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Keys returns the stored keys in sorted order
func (c *SharedContext) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Clear removes every value
func (c *SharedContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any)
}

// Key is a typed key for a SharedContext entry.
type Key[T any] struct {
	name string
}

// NewKey creates a typed key
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the underlying string key
func (k Key[T]) Name() string {
	return k.name
}

// GetValue reads a typed value. It reports false when the key is missing or
// holds a value of another type.
func GetValue[T any](c *SharedContext, key Key[T]) (T, bool) {
	var zero T
	value, exists := c.Get(key.name)
	if !exists {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// SetValue stores a typed value
func SetValue[T any](c *SharedContext, key Key[T], value T) {
	c.Set(key.name, value)
}

// FlowContext is handed to every stage handler of one traversal.
// Shared lives as long as the Workflow; Flow is created by each Start and
// carried by every ContinueNode of that traversal.
type FlowContext struct {
	FlowID string
	Shared *SharedContext
	Flow   *SharedContext
}

func newFlowContext(shared *SharedContext) *FlowContext {
	return &FlowContext{
		FlowID: uuid.NewString(),
		Shared: shared,
		Flow:   NewSharedContext(),
	}
}
