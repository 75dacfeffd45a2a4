package collector

import (
	"strings"
)

// Event types sent in the parameters of a continue request
const (
	EventSubmit = "submit"
	EventAction = "action"
)

// Collector is one server-described form field
type Collector interface {
	// Key identifies the field in formData
	Key() string
	// Type is the DaVinci field type, e.g. TEXT or SUBMIT_BUTTON
	Type() string
	// Payload is the value sent to the server, or nil to omit the field
	Payload() any
}

// Validator is implemented by collectors that check their value locally
type Validator interface {
	Validate() []ValidationError
}

// Submittable is implemented by collectors that select the event of the
// next request, such as buttons and links.
type Submittable interface {
	Collector
	EventType() string
}

// Initializer is implemented by collectors that take an initial value from
// the formData of the response.
type Initializer interface {
	Initialize(value any)
}

// FieldMeta holds the attributes shared by every field
type FieldMeta struct {
	FieldType string
	FieldKey  string
	Label     string
	Required  bool
}

// NewFieldMeta reads the shared attributes. Missing or mistyped attributes
// fall back to zero values.
func NewFieldMeta(field map[string]any) FieldMeta {
	return FieldMeta{
		FieldType: stringOf(field, "type"),
		FieldKey:  stringOf(field, "key"),
		Label:     stringOf(field, "label"),
		Required:  boolOf(field, "required"),
	}
}

// Key implements Collector
func (f *FieldMeta) Key() string {
	return f.FieldKey
}

// Type implements Collector
func (f *FieldMeta) Type() string {
	return f.FieldType
}

// Collectors is the ordered list of collectors of a continue node
type Collectors []Collector

// Get returns the collector with the given key
func (cs Collectors) Get(key string) (Collector, bool) {
	for _, c := range cs {
		if c.Key() == key {
			return c, true
		}
	}
	return nil, false
}

// Text returns the text collector with the given key, or nil
func (cs Collectors) Text(key string) *TextCollector {
	return find[*TextCollector](cs, key)
}

// Password returns the password collector with the given key, or nil
func (cs Collectors) Password(key string) *PasswordCollector {
	return find[*PasswordCollector](cs, key)
}

// Submit returns the submit collector with the given key, or nil
func (cs Collectors) Submit(key string) *SubmitCollector {
	return find[*SubmitCollector](cs, key)
}

// Flow returns the flow collector with the given key, or nil
func (cs Collectors) Flow(key string) *FlowCollector {
	return find[*FlowCollector](cs, key)
}

func find[T Collector](cs Collectors, key string) T {
	var zero T
	for _, c := range cs {
		if t, ok := c.(T); ok && c.Key() == key {
			return t
		}
	}
	return zero
}

// submitter returns the first submittable collector with a payload
func (cs Collectors) submitter() Submittable {
	for _, c := range cs {
		if s, ok := c.(Submittable); ok && s.Payload() != nil {
			return s
		}
	}
	return nil
}

// EventType returns the event type of the first submittable collector that
// has a value, or EventSubmit.
func (cs Collectors) EventType() string {
	if s := cs.submitter(); s != nil {
		return s.EventType()
	}
	return EventSubmit
}

// AsJSON builds {"actionKey": key, "formData": {...}} from the collectors.
// actionKey is empty when no action has a value. Collectors with a nil
// payload are omitted and dotted keys nest.
func (cs Collectors) AsJSON() map[string]any {
	out := map[string]any{"actionKey": ""}
	if s := cs.submitter(); s != nil {
		out["actionKey"] = s.Key()
	}

	formData := map[string]any{}
	for _, c := range cs {
		if _, ok := c.(Submittable); ok {
			continue
		}
		value := c.Payload()
		if value == nil || c.Key() == "" {
			continue
		}
		setPath(formData, c.Key(), value)
	}
	out["formData"] = formData
	return out
}

// Validate runs every Validator and returns the problems by field key.
// An empty map means every field is valid.
func (cs Collectors) Validate() map[string][]ValidationError {
	out := map[string][]ValidationError{}
	for _, c := range cs {
		v, ok := c.(Validator)
		if !ok {
			continue
		}
		if errs := v.Validate(); len(errs) > 0 {
			out[c.Key()] = errs
		}
	}
	return out
}

// Close releases collectors holding sensitive input
func (cs Collectors) Close() {
	for _, c := range cs {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

func setPath(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

// lookupPath reads key from m, trying the literal key before the dotted path
func lookupPath(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = m
	for _, p := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringOf(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolOf(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func intOf(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func mapOf(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func mapsOf(m map[string]any, key string) []map[string]any {
	items, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func stringsOf(v any) []string {
	switch items := v.(type) {
	case []string:
		return append([]string(nil), items...)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if items == "" {
			return nil
		}
		return []string{items}
	}
	return nil
}
