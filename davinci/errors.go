package davinci

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired is the cause of the FailureNode returned when the
	// server reports that the interaction timed out.
	ErrSessionExpired = errors.New("davinci: session expired")

	// ErrStateMismatch is returned when the state of the authorize response
	// differs from the one sent.
	ErrStateMismatch = errors.New("davinci: state mismatch")

	// ErrNoNextLink is returned when a continue node has no next link to
	// post to.
	ErrNoNextLink = errors.New("davinci: continue response has no next link")
)

// ServerError is a DaVinci error response that ends the flow
type ServerError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("davinci error: status %d: code %s: %s", e.Status, e.Code, e.Message)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
