package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Stage is the per-workflow form of a module: one method per lifecycle
// stage. The Workflow calls every stage in module order.
type Stage interface {
	Name() string
	Initialize(ctx context.Context) error
	Start(ctx context.Context, fc *FlowContext, req *Request) (*Request, error)
	Next(ctx context.Context, fc *FlowContext, current *ContinueNode, req *Request) (*Request, error)
	Response(ctx context.Context, fc *FlowContext, resp *Response) error
	Node(ctx context.Context, fc *FlowContext, node Node) (Node, error)
	Success(ctx context.Context, fc *FlowContext, node *SuccessNode) (*SuccessNode, error)
	SignOff(ctx context.Context, req *Request) (*Request, error)
}

// Transformer is implemented by the single stage that decodes responses
// into nodes.
type Transformer interface {
	Transform(ctx context.Context, fc *FlowContext, resp *Response) (Node, error)
}

// BaseStage provides no-op implementations of every Stage method except Name
type BaseStage struct{}

func (BaseStage) Initialize(ctx context.Context) error { return nil }

func (BaseStage) Start(ctx context.Context, fc *FlowContext, req *Request) (*Request, error) {
	return req, nil
}

func (BaseStage) Next(ctx context.Context, fc *FlowContext, current *ContinueNode, req *Request) (*Request, error) {
	return req, nil
}

func (BaseStage) Response(ctx context.Context, fc *FlowContext, resp *Response) error { return nil }

func (BaseStage) Node(ctx context.Context, fc *FlowContext, node Node) (Node, error) {
	return node, nil
}

func (BaseStage) Success(ctx context.Context, fc *FlowContext, node *SuccessNode) (*SuccessNode, error) {
	return node, nil
}

func (BaseStage) SignOff(ctx context.Context, req *Request) (*Request, error) { return req, nil }

// Handler signatures, one per stage
type (
	InitializeHandler func(ctx context.Context) error
	StartHandler      func(ctx context.Context, fc *FlowContext, req *Request) (*Request, error)
	NextHandler       func(ctx context.Context, fc *FlowContext, current *ContinueNode, req *Request) (*Request, error)
	ResponseHandler   func(ctx context.Context, fc *FlowContext, resp *Response) error
	TransformHandler  func(ctx context.Context, fc *FlowContext, resp *Response) (Node, error)
	NodeHandler       func(ctx context.Context, fc *FlowContext, node Node) (Node, error)
	SuccessHandler    func(ctx context.Context, fc *FlowContext, node *SuccessNode) (*SuccessNode, error)
	SignOffHandler    func(ctx context.Context, req *Request) (*Request, error)
)

// Registrant is something that can be registered with a ModuleRegistry:
// a *Module[C] or a *StageModule.
type Registrant interface {
	Name() string
	build(w *Workflow, configure func(any) error) (Stage, error)
}

// Module is a named unit of behavior. Every Workflow built with the module
// gets a fresh configuration from the factory and runs setup once.
// Identity is pointer identity.
type Module[C any] struct {
	name   string
	config func() *C
	setup  func(*Setup[C])
}

// NewModule creates a module. config may be nil, in which case new(C) is used.
func NewModule[C any](name string, config func() *C, setup func(*Setup[C])) *Module[C] {
	return &Module[C]{name: name, config: config, setup: setup}
}

// Name returns the module name
func (m *Module[C]) Name() string {
	return m.name
}

func (m *Module[C]) build(w *Workflow, configure func(any) error) (Stage, error) {
	var cfg *C
	if m.config != nil {
		cfg = m.config()
	}
	if cfg == nil {
		cfg = new(C)
	}
	if configure != nil {
		if err := configure(cfg); err != nil {
			return nil, err
		}
	}

	s := &Setup[C]{
		config:   cfg,
		workflow: w,
		stage:    &moduleStage{name: m.name},
	}
	if m.setup != nil {
		m.setup(s)
	}
	if s.err != nil {
		return nil, s.err
	}

	if s.stage.transform != nil {
		return &transformingStage{moduleStage: s.stage}, nil
	}
	return s.stage, nil
}

// Setup is handed to a module's setup function. Each registration method
// appends a handler to the module's list for that stage.
type Setup[C any] struct {
	config   *C
	workflow *Workflow
	stage    *moduleStage
	err      error
}

// Config returns the module's configuration for this workflow
func (s *Setup[C]) Config() *C {
	return s.config
}

// Workflow returns the workflow being built
func (s *Setup[C]) Workflow() *Workflow {
	return s.workflow
}

// Logger returns the workflow logger tagged with the module name
func (s *Setup[C]) Logger() *slog.Logger {
	return s.workflow.Logger().With("module", s.stage.name)
}

func (s *Setup[C]) Initialize(h InitializeHandler) {
	s.stage.initialize = append(s.stage.initialize, h)
}
func (s *Setup[C]) Start(h StartHandler)       { s.stage.start = append(s.stage.start, h) }
func (s *Setup[C]) Next(h NextHandler)         { s.stage.next = append(s.stage.next, h) }
func (s *Setup[C]) Response(h ResponseHandler) { s.stage.response = append(s.stage.response, h) }
func (s *Setup[C]) Node(h NodeHandler)         { s.stage.node = append(s.stage.node, h) }
func (s *Setup[C]) Success(h SuccessHandler)   { s.stage.success = append(s.stage.success, h) }
func (s *Setup[C]) SignOff(h SignOffHandler)   { s.stage.signOff = append(s.stage.signOff, h) }

// Transform registers the response decoder. A module may register at most
// one, and a workflow may contain at most one module that does.
func (s *Setup[C]) Transform(h TransformHandler) {
	if s.stage.transform != nil {
		s.err = fmt.Errorf("%w: module %s registers transform twice", ErrTransformConflict, s.stage.name)
		return
	}
	s.stage.transform = h
}

type moduleStage struct {
	name       string
	initialize []InitializeHandler
	start      []StartHandler
	next       []NextHandler
	response   []ResponseHandler
	transform  TransformHandler
	node       []NodeHandler
	success    []SuccessHandler
	signOff    []SignOffHandler
}

func (m *moduleStage) Name() string { return m.name }

func (m *moduleStage) Initialize(ctx context.Context) error {
	for _, h := range m.initialize {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *moduleStage) Start(ctx context.Context, fc *FlowContext, req *Request) (*Request, error) {
	var err error
	for _, h := range m.start {
		if req, err = h(ctx, fc, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (m *moduleStage) Next(ctx context.Context, fc *FlowContext, current *ContinueNode, req *Request) (*Request, error) {
	var err error
	for _, h := range m.next {
		if req, err = h(ctx, fc, current, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (m *moduleStage) Response(ctx context.Context, fc *FlowContext, resp *Response) error {
	for _, h := range m.response {
		if err := h(ctx, fc, resp); err != nil {
			return err
		}
	}
	return nil
}

func (m *moduleStage) Node(ctx context.Context, fc *FlowContext, node Node) (Node, error) {
	var err error
	for _, h := range m.node {
		if node, err = h(ctx, fc, node); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (m *moduleStage) Success(ctx context.Context, fc *FlowContext, node *SuccessNode) (*SuccessNode, error) {
	var err error
	for _, h := range m.success {
		if node, err = h(ctx, fc, node); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (m *moduleStage) SignOff(ctx context.Context, req *Request) (*Request, error) {
	var err error
	for _, h := range m.signOff {
		if req, err = h(ctx, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

type transformingStage struct {
	*moduleStage
}

func (t *transformingStage) Transform(ctx context.Context, fc *FlowContext, resp *Response) (Node, error) {
	return t.moduleStage.transform(ctx, fc, resp)
}

// StageModule registers a hand-written Stage. The factory runs once per
// Workflow. Configure[T] options receive the built stage when it is a *T.
type StageModule struct {
	name    string
	factory func(w *Workflow) Stage
}

// NewStageModule creates a module from a stage factory
func NewStageModule(name string, factory func(w *Workflow) Stage) *StageModule {
	return &StageModule{name: name, factory: factory}
}

// Name returns the module name
func (m *StageModule) Name() string {
	return m.name
}

func (m *StageModule) build(w *Workflow, configure func(any) error) (Stage, error) {
	if m.factory == nil {
		return nil, errors.New("stage module has no factory")
	}
	stage := m.factory(w)
	if stage == nil {
		return nil, errors.New("stage factory returned nil")
	}
	if configure != nil {
		if err := configure(stage); err != nil {
			return nil, err
		}
	}
	return stage, nil
}
