package orchestrate

import (
	"log/slog"
	"time"
)

// DefaultTimeout is the HTTP timeout used when none is configured
const DefaultTimeout = 15 * time.Second

// WorkflowConfig is the root configuration of a Workflow
type WorkflowConfig struct {
	Timeout    time.Duration
	Logger     *slog.Logger
	HTTPClient HTTPClient
	Modules    *ModuleRegistry
}

// Option configures a Workflow
type Option func(*WorkflowConfig)

// WithTimeout sets the HTTP timeout. It only applies to the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *WorkflowConfig) {
		cfg.Timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *WorkflowConfig) {
		cfg.Logger = logger
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client HTTPClient) Option {
	return func(cfg *WorkflowConfig) {
		cfg.HTTPClient = client
	}
}

// WithModule registers a module
func WithModule(module Registrant, opts ...RegisterOption) Option {
	return func(cfg *WorkflowConfig) {
		cfg.Modules.Register(module, opts...)
	}
}

// WithRegistry uses a prepared registry. Modules registered through
// WithModule afterwards are added to it.
func WithRegistry(registry *ModuleRegistry) Option {
	return func(cfg *WorkflowConfig) {
		if registry != nil {
			cfg.Modules = registry
		}
	}
}
