package orchestrate

import (
	"fmt"
	"sort"
	"sync"
)

// Mode controls what Register does when the module is already registered
type Mode int

const (
	// Override replaces the existing registration's priority and
	// configuration while keeping its insertion position.
	Override Mode = iota
	// Append always adds a new registration.
	Append
	// Ignore keeps the existing registration untouched.
	Ignore
)

func (m Mode) String() string {
	switch m {
	case Override:
		return "override"
	case Append:
		return "append"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// DefaultPriority is used when WithPriority is not given
const DefaultPriority = 10

type registration struct {
	module    Registrant
	priority  int
	configure func(any) error
	seq       int
}

type registerOptions struct {
	priority  int
	mode      Mode
	configure func(any) error
}

// RegisterOption configures a registration
type RegisterOption func(*registerOptions)

// WithPriority sets the priority. Lower priorities run first.
func WithPriority(priority int) RegisterOption {
	return func(o *registerOptions) {
		o.priority = priority
	}
}

// WithMode sets the duplicate handling mode
func WithMode(mode Mode) RegisterOption {
	return func(o *registerOptions) {
		o.mode = mode
	}
}

// Configure mutates the module's configuration after the factory creates
// it. Several Configure options run in the order given.
func Configure[C any](fn func(*C)) RegisterOption {
	return func(o *registerOptions) {
		prev := o.configure
		o.configure = func(cfg any) error {
			if prev != nil {
				if err := prev(cfg); err != nil {
					return err
				}
			}
			typed, ok := cfg.(*C)
			if !ok {
				return fmt.Errorf("%w: configuration is %T, not %T", ErrInvalidModule, cfg, (*C)(nil))
			}
			fn(typed)
			return nil
		}
	}
}

// ModuleRegistry is the ordered set of module registrations of a workflow.
type ModuleRegistry struct {
	mu      sync.Mutex
	entries []*registration
	seq     int
}

// NewModuleRegistry creates an empty registry
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{}
}

// Register adds a module
func (r *ModuleRegistry) Register(module Registrant, opts ...RegisterOption) {
	o := &registerOptions{priority: DefaultPriority, mode: Override}
	for _, opt := range opts {
		opt(o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if o.mode != Append {
		if existing := r.find(module); existing != nil {
			if o.mode == Override {
				existing.priority = o.priority
				existing.configure = o.configure
			}
			return
		}
	}

	r.entries = append(r.entries, &registration{
		module:    module,
		priority:  o.priority,
		configure: o.configure,
		seq:       r.seq,
	})
	r.seq++
}

func (r *ModuleRegistry) find(module Registrant) *registration {
	for _, e := range r.entries {
		if e.module == module {
			return e
		}
	}
	return nil
}

// Contains reports whether the module is registered
func (r *ModuleRegistry) Contains(module Registrant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(module) != nil
}

// Len returns the number of registrations
func (r *ModuleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Modules returns the registered modules in execution order: by priority,
// then by first registration.
func (r *ModuleRegistry) Modules() []Registrant {
	sorted := r.sorted()
	out := make([]Registrant, len(sorted))
	for i, e := range sorted {
		out[i] = e.module
	}
	return out
}

func (r *ModuleRegistry) sorted() []registration {
	r.mu.Lock()
	out := make([]registration, len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}
