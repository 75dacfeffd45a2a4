package collector

// TextCollector is a single-line text input (TEXT)
type TextCollector struct {
	FieldMeta
	Validation *RegexValidation
	Value      string
}

// RegexValidation is the optional pattern a text value must match
type RegexValidation struct {
	Regex        string
	ErrorMessage string
}

// NewTextCollector parses a TEXT field
func NewTextCollector(field map[string]any) Collector {
	c := &TextCollector{FieldMeta: NewFieldMeta(field)}
	if v := mapOf(field, "validation"); v != nil {
		c.Validation = &RegexValidation{
			Regex:        stringOf(v, "regex"),
			ErrorMessage: stringOf(v, "errorMessage"),
		}
	}
	return c
}

// Initialize implements Initializer
func (c *TextCollector) Initialize(value any) {
	if s, ok := value.(string); ok {
		c.Value = s
	}
}

// Payload implements Collector. An empty value is omitted.
func (c *TextCollector) Payload() any {
	if c.Value == "" {
		return nil
	}
	return c.Value
}

// Validate implements Validator
func (c *TextCollector) Validate() []ValidationError {
	var errs []ValidationError
	if c.Required && c.Value == "" {
		errs = append(errs, required(c.FieldKey))
	}
	if c.Validation != nil && c.Value != "" {
		if err := matchRegex(c.FieldKey, c.Value, c.Validation.Regex, c.Validation.ErrorMessage); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// PasswordCollector is a password input (PASSWORD or PASSWORD_VERIFY).
// The value is cleared by Close.
type PasswordCollector struct {
	FieldMeta
	// Verify is set for PASSWORD_VERIFY fields that ask for the password twice
	Verify bool
	Policy *PasswordPolicy
	Value  string
}

// NewPasswordCollector parses a PASSWORD or PASSWORD_VERIFY field
func NewPasswordCollector(field map[string]any) Collector {
	meta := NewFieldMeta(field)
	return &PasswordCollector{
		FieldMeta: meta,
		Verify:    meta.FieldType == "PASSWORD_VERIFY",
	}
}

// Payload implements Collector. An empty value is omitted.
func (c *PasswordCollector) Payload() any {
	if c.Value == "" {
		return nil
	}
	return c.Value
}

// Validate implements Validator. The password policy, when present, is
// checked in addition to the required flag.
func (c *PasswordCollector) Validate() []ValidationError {
	var errs []ValidationError
	if c.Required && c.Value == "" {
		errs = append(errs, required(c.FieldKey))
	}
	if c.Policy != nil && c.Value != "" {
		errs = append(errs, c.Policy.Validate(c.FieldKey, c.Value)...)
	}
	return errs
}

// Close clears the password
func (c *PasswordCollector) Close() {
	c.Value = ""
}

// LabelCollector is static text shown to the user (LABEL). It never
// contributes to the request.
type LabelCollector struct {
	FieldMeta
	Content string
}

// NewLabelCollector parses a LABEL field
func NewLabelCollector(field map[string]any) Collector {
	return &LabelCollector{
		FieldMeta: NewFieldMeta(field),
		Content:   stringOf(field, "content"),
	}
}

// Payload implements Collector
func (c *LabelCollector) Payload() any {
	return nil
}

// Option is one choice of a select field
type Option struct {
	Label string
	Value string
}

func optionsOf(field map[string]any) []Option {
	var options []Option
	for _, o := range mapsOf(field, "options") {
		options = append(options, Option{Label: stringOf(o, "label"), Value: stringOf(o, "value")})
	}
	return options
}

// SingleSelectCollector picks one option (DROPDOWN or RADIO)
type SingleSelectCollector struct {
	FieldMeta
	Options []Option
	Value   string
}

// NewSingleSelectCollector parses a DROPDOWN or RADIO field
func NewSingleSelectCollector(field map[string]any) Collector {
	return &SingleSelectCollector{
		FieldMeta: NewFieldMeta(field),
		Options:   optionsOf(field),
	}
}

// Initialize implements Initializer
func (c *SingleSelectCollector) Initialize(value any) {
	if s, ok := value.(string); ok {
		c.Value = s
	}
}

// Payload implements Collector
func (c *SingleSelectCollector) Payload() any {
	if c.Value == "" {
		return nil
	}
	return c.Value
}

// Validate implements Validator
func (c *SingleSelectCollector) Validate() []ValidationError {
	if c.Required && c.Value == "" {
		return []ValidationError{required(c.FieldKey)}
	}
	return nil
}

// MultiSelectCollector picks any number of options (COMBOBOX or CHECKBOX)
type MultiSelectCollector struct {
	FieldMeta
	Options []Option
	Value   []string
}

// NewMultiSelectCollector parses a COMBOBOX or CHECKBOX field
func NewMultiSelectCollector(field map[string]any) Collector {
	return &MultiSelectCollector{
		FieldMeta: NewFieldMeta(field),
		Options:   optionsOf(field),
	}
}

// Initialize implements Initializer
func (c *MultiSelectCollector) Initialize(value any) {
	c.Value = stringsOf(value)
}

// Payload implements Collector
func (c *MultiSelectCollector) Payload() any {
	if len(c.Value) == 0 {
		return nil
	}
	return c.Value
}

// Validate implements Validator
func (c *MultiSelectCollector) Validate() []ValidationError {
	if c.Required && len(c.Value) == 0 {
		return []ValidationError{required(c.FieldKey)}
	}
	return nil
}
