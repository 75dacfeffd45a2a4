package events

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrPublisherClosed is returned by Publish after Close
	ErrPublisherClosed = errors.New("events: publisher is closed")

	// ErrNotConfirmed is returned when the broker nacks an event
	ErrNotConfirmed = errors.New("events: publish not confirmed")
)

// ConnectionError represents a failure to reach the broker
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("amqp connection error: %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PublishError represents a failed publish of one event
type PublishError struct {
	Exchange   string
	RoutingKey string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("amqp publish error: exchange=%s routingKey=%s: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// sanitizeURL hides the password of an amqp url
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
