package collector

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Constructor builds a collector from a field object. Returning nil skips
// the field.
type Constructor func(field map[string]any) Collector

// Factory maps DaVinci field types to constructors. It is safe for
// concurrent use; build one at startup and pass it to the modules that
// parse responses.
type Factory struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor
	logger *slog.Logger
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithLogger sets the logger used to report skipped fields
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory creates a factory with the built-in field types registered
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		ctors:  make(map[string]Constructor),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	defaults := map[string]Constructor{
		"TEXT":                  NewTextCollector,
		"PASSWORD":              NewPasswordCollector,
		"PASSWORD_VERIFY":       NewPasswordCollector,
		"SUBMIT_BUTTON":         NewSubmitCollector,
		"FLOW_BUTTON":           NewFlowCollector,
		"FLOW_LINK":             NewFlowCollector,
		"LABEL":                 NewLabelCollector,
		"DROPDOWN":              NewSingleSelectCollector,
		"RADIO":                 NewSingleSelectCollector,
		"COMBOBOX":              NewMultiSelectCollector,
		"CHECKBOX":              NewMultiSelectCollector,
		"DEVICE_REGISTRATION":   NewDeviceRegistrationCollector,
		"DEVICE_AUTHENTICATION": NewDeviceAuthenticationCollector,
		"PHONE_NUMBER":          NewPhoneNumberCollector,
		"FIDO2":                 NewFido2Collector,
	}
	for typ, ctor := range defaults {
		f.ctors[typ] = ctor
	}
	return f
}

// Register adds or replaces the constructor for a field type
func (f *Factory) Register(fieldType string, ctor Constructor) error {
	if fieldType == "" {
		return errors.New("field type cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("constructor for %s cannot be nil", fieldType)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[fieldType] = ctor
	return nil
}

// IsRegistered reports whether a constructor exists for the field type
func (f *Factory) IsRegistered(fieldType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ctors[fieldType]
	return ok
}

// Types returns the registered field types, sorted
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.ctors))
	for t := range f.ctors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Collect builds collectors for fields in order. values holds initial
// values keyed by field key; dotted keys may be given nested. Fields of
// unknown type are skipped.
func (f *Factory) Collect(fields []map[string]any, values map[string]any) Collectors {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(Collectors, 0, len(fields))
	for _, field := range fields {
		typ := stringOf(field, "type")
		ctor, ok := f.ctors[typ]
		if !ok {
			f.logger.Debug("skipping unknown collector type", "type", typ, "key", stringOf(field, "key"))
			continue
		}

		c := ctor(field)
		if c == nil {
			f.logger.Debug("collector constructor skipped field", "type", typ, "key", stringOf(field, "key"))
			continue
		}

		if init, ok := c.(Initializer); ok && values != nil {
			if v, ok := lookupPath(values, c.Key()); ok {
				init.Initialize(v)
			}
		}
		out = append(out, c)
	}
	return out
}

// Parse builds the collectors of a continue response. It reads the fields
// from form.components.fields, the initial values from formData.value and
// applies passwordPolicy to every password collector.
func (f *Factory) Parse(input map[string]any) Collectors {
	fields := mapsOf(mapOf(mapOf(input, "form"), "components"), "fields")
	values := mapOf(mapOf(input, "formData"), "value")

	cs := f.Collect(fields, values)

	if policy := ParsePasswordPolicy(mapOf(input, "passwordPolicy")); policy != nil {
		for _, c := range cs {
			if p, ok := c.(*PasswordCollector); ok {
				p.Policy = policy
			}
		}
	}
	return cs
}
