package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Workflow drives a server-directed flow through the lifecycle stages of
// its modules:
//
//	initialize (once) -> start -> send -> response -> transform -> node -> success
//
// ContinueNode.Next repeats the same cycle with next instead of start.
// Errors never escape Start or Next; they are returned as a *FailureNode.
type Workflow struct {
	timeout time.Duration
	logger  *slog.Logger
	client  HTTPClient
	shared  *SharedContext

	stages         []Stage
	transform      Transformer
	transformOwner string

	initMu      sync.Mutex
	initialized bool
}

// New builds a workflow. It fails when a module cannot be built or when
// more than one module registers a transform handler.
func New(opts ...Option) (*Workflow, error) {
	cfg := WorkflowConfig{
		Timeout: DefaultTimeout,
		Logger:  slog.Default(),
		Modules: NewModuleRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient(
			WithHTTPTimeout(cfg.Timeout),
			WithHTTPLogger(cfg.Logger),
		)
	}

	w := &Workflow{
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		client:  cfg.HTTPClient,
		shared:  NewSharedContext(),
	}

	for _, reg := range cfg.Modules.sorted() {
		name := reg.module.Name()
		stage, err := reg.module.build(w, reg.configure)
		if err != nil {
			return nil, fmt.Errorf("failed to build module %s: %w", name, err)
		}

		if t, ok := stage.(Transformer); ok {
			if w.transform != nil {
				return nil, fmt.Errorf("%w: %s and %s", ErrTransformConflict, w.transformOwner, name)
			}
			w.transform = t
			w.transformOwner = name
		}

		w.stages = append(w.stages, stage)
		w.logger.Debug("module registered", "module", name, "priority", reg.priority)
	}

	return w, nil
}

// Logger returns the workflow logger
func (w *Workflow) Logger() *slog.Logger {
	return w.logger
}

// HTTPClient returns the HTTP client used for every stage
func (w *Workflow) HTTPClient() HTTPClient {
	return w.client
}

// Timeout returns the configured HTTP timeout
func (w *Workflow) Timeout() time.Duration {
	return w.timeout
}

// SharedContext returns the workflow-lifetime context
func (w *Workflow) SharedContext() *SharedContext {
	return w.shared
}

// Stages returns the names of the built stages in execution order
func (w *Workflow) Stages() []string {
	names := make([]string, len(w.stages))
	for i, s := range w.stages {
		names[i] = s.Name()
	}
	return names
}

// Initialize runs the initialize handlers once. Start calls it lazily; a
// failed initialization is retried by the next call.
func (w *Workflow) Initialize(ctx context.Context) error {
	w.initMu.Lock()
	defer w.initMu.Unlock()

	if w.initialized {
		return nil
	}
	for _, s := range w.stages {
		if err := s.Initialize(ctx); err != nil {
			return &StageError{Stage: "initialize", Module: s.Name(), Err: err}
		}
	}
	w.initialized = true
	return nil
}

// Start begins a new flow traversal
func (w *Workflow) Start(ctx context.Context) Node {
	fc := newFlowContext(w.shared)

	return w.run("start", fc, func() (Node, error) {
		if err := w.Initialize(ctx); err != nil {
			return nil, err
		}

		req := NewRequest()
		for _, s := range w.stages {
			next, err := s.Start(ctx, fc, req)
			if err != nil {
				return nil, &StageError{Stage: "start", Module: s.Name(), Err: err}
			}
			req = orRequest(next, req)
		}

		return w.exchange(ctx, fc, req)
	})
}

func (w *Workflow) next(ctx context.Context, current *ContinueNode) Node {
	fc := current.Context
	if fc == nil {
		fc = newFlowContext(w.shared)
		current.Context = fc
	}

	return w.run("next", fc, func() (Node, error) {
		if err := w.Initialize(ctx); err != nil {
			return nil, err
		}

		req := NewRequest()
		if current.request != nil {
			built, err := current.request(ctx, current)
			if err != nil {
				return nil, &StageError{Stage: "next", Err: err}
			}
			req = orRequest(built, req)
		}

		for _, s := range w.stages {
			next, err := s.Next(ctx, fc, current, req)
			if err != nil {
				return nil, &StageError{Stage: "next", Module: s.Name(), Err: err}
			}
			req = orRequest(next, req)
		}

		return w.exchange(ctx, fc, req)
	})
}

// SignOff runs the signOff handlers and sends the resulting request. It is
// best-effort: failures are logged and returned but never panic. When no
// handler sets a URL nothing is sent.
func (w *Workflow) SignOff(ctx context.Context) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
		if err != nil {
			w.logger.Warn("sign off failed", "error", err)
		}
	}()

	if err := w.Initialize(ctx); err != nil {
		return err
	}

	req := NewRequest()
	for _, s := range w.stages {
		next, err := s.SignOff(ctx, req)
		if err != nil {
			return &StageError{Stage: "signOff", Module: s.Name(), Err: err}
		}
		req = orRequest(next, req)
	}

	if req.URL() == "" {
		w.logger.Debug("no sign off request to send")
		return nil
	}

	resp, err := w.client.Send(ctx, req)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &APIError{Status: resp.Status, Body: resp.Body}
	}

	w.logger.Debug("signed off", "url", req.redactedURL())
	return nil
}

// run executes one traversal step and converts errors and panics into a
// FailureNode.
func (w *Workflow) run(op string, fc *FlowContext, fn func() (Node, error)) (node Node) {
	defer func() {
		if v := recover(); v != nil {
			node = w.fail(op, fc, &PanicError{Value: v})
		}
	}()

	n, err := fn()
	if err != nil {
		return w.fail(op, fc, err)
	}
	return n
}

func (w *Workflow) fail(op string, fc *FlowContext, err error) *FailureNode {
	w.logger.Error("flow step failed", "op", op, "flowId", fc.FlowID, "error", err)
	return &FailureNode{Cause: err}
}

// exchange sends req and turns the response into the next node
func (w *Workflow) exchange(ctx context.Context, fc *FlowContext, req *Request) (Node, error) {
	resp, err := w.send(ctx, fc, req)
	if err != nil {
		return nil, err
	}

	node, err := w.decode(ctx, fc, resp)
	if err != nil {
		return nil, err
	}
	w.attach(node, fc)

	for _, s := range w.stages {
		next, err := s.Node(ctx, fc, node)
		if err != nil {
			return nil, &StageError{Stage: "node", Module: s.Name(), Err: err}
		}
		if next != nil {
			node = next
		}
	}
	w.attach(node, fc)

	if success, ok := node.(*SuccessNode); ok {
		for _, s := range w.stages {
			next, err := s.Success(ctx, fc, success)
			if err != nil {
				return nil, &StageError{Stage: "success", Module: s.Name(), Err: err}
			}
			if next != nil {
				success = next
			}
		}
		node = success
	}

	w.logger.Debug("flow step completed", "flowId", fc.FlowID, "node", fmt.Sprintf("%T", node))
	return node, nil
}

func (w *Workflow) send(ctx context.Context, fc *FlowContext, req *Request) (*Response, error) {
	w.logger.Debug("sending request", "flowId", fc.FlowID, "method", req.Method(), "url", req.redactedURL())

	resp, err := w.client.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Request == nil {
		resp.Request = req
	}

	for _, s := range w.stages {
		if err := s.Response(ctx, fc, resp); err != nil {
			return nil, &StageError{Stage: "response", Module: s.Name(), Err: err}
		}
	}
	return resp, nil
}

func (w *Workflow) decode(ctx context.Context, fc *FlowContext, resp *Response) (Node, error) {
	if w.transform == nil {
		return unknownResponse(resp), nil
	}

	node, err := w.transform.Transform(ctx, fc, resp)
	if err != nil {
		return nil, &StageError{Stage: "transform", Module: w.transformOwner, Err: err}
	}
	if node == nil {
		return unknownResponse(resp), nil
	}
	return node, nil
}

func (w *Workflow) attach(node Node, fc *FlowContext) {
	if c, ok := node.(*ContinueNode); ok {
		c.workflow = w
		if c.Context == nil {
			c.Context = fc
		}
	}
}

// unknownResponse keeps the raw body of a response nobody could decode
func unknownResponse(resp *Response) *ErrorNode {
	input, err := resp.JSON()
	if err != nil {
		input = map[string]any{"body": string(resp.Body)}
	}
	return &ErrorNode{Input: input, Message: "unknown response", Status: resp.Status}
}

func orRequest(next, current *Request) *Request {
	if next == nil {
		return current
	}
	return next
}
