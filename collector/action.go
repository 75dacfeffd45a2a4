package collector

// SubmitCollector is a form submit button (SUBMIT_BUTTON). Setting Value
// selects it as the action of the next request.
type SubmitCollector struct {
	FieldMeta
	Value string
}

// NewSubmitCollector parses a SUBMIT_BUTTON field
func NewSubmitCollector(field map[string]any) Collector {
	return &SubmitCollector{FieldMeta: NewFieldMeta(field)}
}

// Payload implements Collector
func (c *SubmitCollector) Payload() any {
	if c.Value == "" {
		return nil
	}
	return c.Value
}

// EventType implements Submittable
func (c *SubmitCollector) EventType() string {
	return EventSubmit
}

// FlowCollector is a button or link that branches the flow (FLOW_BUTTON or
// FLOW_LINK).
type FlowCollector struct {
	FieldMeta
	Value string
}

// NewFlowCollector parses a FLOW_BUTTON or FLOW_LINK field
func NewFlowCollector(field map[string]any) Collector {
	return &FlowCollector{FieldMeta: NewFieldMeta(field)}
}

// Payload implements Collector
func (c *FlowCollector) Payload() any {
	if c.Value == "" {
		return nil
	}
	return c.Value
}

// EventType implements Submittable
func (c *FlowCollector) EventType() string {
	return EventAction
}
