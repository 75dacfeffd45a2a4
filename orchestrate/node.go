package orchestrate

import "context"

// Node is the result of one traversal step. It is one of *ContinueNode,
// *SuccessNode, *FailureNode or *ErrorNode.
type Node interface {
	node()
}

// Action is anything a ContinueNode carries, typically a collector.
type Action interface{}

// Closeable is an Action holding resources. Close must be idempotent.
type Closeable interface {
	Close()
}

// Session is the minimal authenticated state returned on success
type Session interface {
	Value() string
}

// SessionValue is a Session backed by a plain string
type SessionValue string

// Value implements Session
func (s SessionValue) Value() string {
	return string(s)
}

// EmptySession is returned when a success carries no session
var EmptySession Session = SessionValue("")

// RequestFunc builds the request that advances a ContinueNode
type RequestFunc func(ctx context.Context, node *ContinueNode) (*Request, error)

// ContinueNode is a step that expects more input.
type ContinueNode struct {
	Context *FlowContext
	Input   map[string]any
	Actions []Action

	workflow *Workflow
	request  RequestFunc
}

// NewContinueNode creates a continue node. request builds the next request
// from the node's actions; the Workflow attaches itself and the flow context
// after the transform stage.
func NewContinueNode(input map[string]any, actions []Action, request RequestFunc) *ContinueNode {
	return &ContinueNode{
		Input:   input,
		Actions: actions,
		request: request,
	}
}

func (*ContinueNode) node() {}

// Workflow returns the workflow that produced this node
func (n *ContinueNode) Workflow() *Workflow {
	return n.workflow
}

// Next sends the node's request and returns the following node. Errors are
// returned as a *FailureNode.
func (n *ContinueNode) Next(ctx context.Context) Node {
	if n.workflow == nil {
		return &FailureNode{Cause: ErrDetachedNode}
	}
	return n.workflow.next(ctx, n)
}

// Close closes every Closeable action
func (n *ContinueNode) Close() {
	for _, action := range n.Actions {
		if c, ok := action.(Closeable); ok {
			c.Close()
		}
	}
}

// SuccessNode is a terminal success
type SuccessNode struct {
	Input   map[string]any
	Session Session
}

func (*SuccessNode) node() {}

// FailureNode is a terminal failure caused by an error
type FailureNode struct {
	Cause error
}

func (*FailureNode) node() {}

// Error implements error so a FailureNode can be returned or wrapped directly
func (n *FailureNode) Error() string {
	if n.Cause == nil {
		return "failure"
	}
	return n.Cause.Error()
}

func (n *FailureNode) Unwrap() error {
	return n.Cause
}

// ErrorNode is an application level failure reported by the server, e.g. a
// rejected password. The flow may be retried by the caller.
type ErrorNode struct {
	Input   map[string]any
	Message string
	Status  int
}

func (*ErrorNode) node() {}
