package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pingidentity/ping-go/orchestrate"
)

// Stages reported by the module
const (
	StageStart   = "start"
	StageNode    = "node"
	StageSuccess = "success"
)

// Event is one lifecycle notification
type Event struct {
	ID        string    `json:"id"`
	FlowID    string    `json:"flowId"`
	Stage     string    `json:"stage"`
	NodeType  string    `json:"nodeType,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID
func NewEvent(flowID, stage string, node orchestrate.Node) Event {
	return Event{
		ID:        uuid.NewString(),
		FlowID:    flowID,
		Stage:     stage,
		NodeType:  NodeType(node),
		Timestamp: time.Now().UTC(),
	}
}

// Marshal encodes the event as JSON
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// NodeType names the variant of node, or "" for nil
func NodeType(node orchestrate.Node) string {
	switch node.(type) {
	case *orchestrate.ContinueNode:
		return "continue"
	case *orchestrate.SuccessNode:
		return "success"
	case *orchestrate.FailureNode:
		return "failure"
	case *orchestrate.ErrorNode:
		return "error"
	}
	return ""
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc is a function adapter for Publisher
type PublisherFunc func(ctx context.Context, event Event) error

// Publish implements Publisher
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}
