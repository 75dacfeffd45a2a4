package orchestrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/pingidentity/ping-go/internal/reliability"
)

var (
	// ErrTransformConflict is returned by New when more than one module
	// registers a transform handler.
	ErrTransformConflict = errors.New("orchestrate: more than one transform handler registered")

	// ErrInvalidModule is returned when a registration cannot be built
	ErrInvalidModule = errors.New("orchestrate: invalid module")

	// ErrDetachedNode is the cause of the FailureNode returned by Next on a
	// ContinueNode that was not produced by a Workflow.
	ErrDetachedNode = errors.New("orchestrate: continue node is not attached to a workflow")

	// ErrMissingURL is returned by the HTTP client for a request without a URL
	ErrMissingURL = errors.New("orchestrate: request has no url")

	// ErrBodyTooLarge is returned by the HTTP client when a response body
	// exceeds the configured maximum size.
	ErrBodyTooLarge = errors.New("orchestrate: response body too large")

	// ErrCircuitOpen matches requests rejected by the circuit breaker of the
	// HTTP client.
	ErrCircuitOpen = reliability.ErrCircuitOpen
)

// StageError wraps an error raised by a stage handler
type StageError struct {
	Stage  string
	Module string
	Err    error
}

func (e *StageError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("%s stage failed in module %s: %v", e.Stage, e.Module, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking handler
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// NetworkError represents a transport failure (connectivity, TLS, timeout)
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports false for cancellation and oversized bodies so that
// retry loops stop
func (e *NetworkError) IsRetryable() bool {
	return !errors.Is(e.Err, context.Canceled) &&
		!errors.Is(e.Err, context.DeadlineExceeded) &&
		!errors.Is(e.Err, ErrBodyTooLarge)
}

// APIError represents a non-2xx response that was not turned into a node
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, body)
}

// DecodeError represents a malformed response body
type DecodeError struct {
	Err  error
	Body []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
