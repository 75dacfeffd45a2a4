package collector

// Device is an MFA device offered by a device field
type Device struct {
	ID          string
	Type        string
	Title       string
	Description string
	IconSrc     string
	Default     bool
	Value       string
}

func devicesOf(field map[string]any) []Device {
	var devices []Device
	for _, o := range mapsOf(field, "options") {
		devices = append(devices, Device{
			ID:          stringOf(o, "id"),
			Type:        stringOf(o, "type"),
			Title:       stringOf(o, "title"),
			Description: stringOf(o, "description"),
			IconSrc:     stringOf(o, "iconSrc"),
			Default:     boolOf(o, "default"),
			Value:       stringOf(o, "value"),
		})
	}
	return devices
}

// DeviceRegistrationCollector selects the type of device to register
// (DEVICE_REGISTRATION).
type DeviceRegistrationCollector struct {
	FieldMeta
	Devices []Device
	Value   *Device
}

// NewDeviceRegistrationCollector parses a DEVICE_REGISTRATION field
func NewDeviceRegistrationCollector(field map[string]any) Collector {
	return &DeviceRegistrationCollector{
		FieldMeta: NewFieldMeta(field),
		Devices:   devicesOf(field),
	}
}

// Payload implements Collector. The server expects the device type.
func (c *DeviceRegistrationCollector) Payload() any {
	if c.Value == nil {
		return nil
	}
	return c.Value.Type
}

// Validate implements Validator
func (c *DeviceRegistrationCollector) Validate() []ValidationError {
	if c.Required && c.Value == nil {
		return []ValidationError{required(c.FieldKey)}
	}
	return nil
}

// DeviceAuthenticationCollector selects a registered device to
// authenticate with (DEVICE_AUTHENTICATION).
type DeviceAuthenticationCollector struct {
	FieldMeta
	Devices []Device
	Value   *Device
}

// NewDeviceAuthenticationCollector parses a DEVICE_AUTHENTICATION field
func NewDeviceAuthenticationCollector(field map[string]any) Collector {
	return &DeviceAuthenticationCollector{
		FieldMeta: NewFieldMeta(field),
		Devices:   devicesOf(field),
	}
}

// Default returns the device marked as default, if any
func (c *DeviceAuthenticationCollector) Default() (Device, bool) {
	for _, d := range c.Devices {
		if d.Default {
			return d, true
		}
	}
	return Device{}, false
}

// Payload implements Collector
func (c *DeviceAuthenticationCollector) Payload() any {
	if c.Value == nil {
		return nil
	}
	return map[string]any{
		"type":  c.Value.Type,
		"id":    c.Value.ID,
		"value": c.Value.Value,
	}
}

// Validate implements Validator
func (c *DeviceAuthenticationCollector) Validate() []ValidationError {
	if c.Required && c.Value == nil {
		return []ValidationError{required(c.FieldKey)}
	}
	return nil
}

// PhoneNumberCollector collects a phone number with its country code
// (PHONE_NUMBER).
type PhoneNumberCollector struct {
	FieldMeta
	DefaultCountryCode  string
	ValidatePhoneNumber bool
	CountryCode         string
	PhoneNumber         string
}

// NewPhoneNumberCollector parses a PHONE_NUMBER field
func NewPhoneNumberCollector(field map[string]any) Collector {
	c := &PhoneNumberCollector{
		FieldMeta:           NewFieldMeta(field),
		DefaultCountryCode:  stringOf(field, "defaultCountryCode"),
		ValidatePhoneNumber: boolOf(field, "validatePhoneNumber"),
	}
	c.CountryCode = c.DefaultCountryCode
	return c
}

// Initialize implements Initializer. It accepts the object form sent back
// in formData.
func (c *PhoneNumberCollector) Initialize(value any) {
	v, ok := value.(map[string]any)
	if !ok {
		return
	}
	if cc := stringOf(v, "countryCode"); cc != "" {
		c.CountryCode = cc
	}
	c.PhoneNumber = stringOf(v, "phoneNumber")
}

// Payload implements Collector
func (c *PhoneNumberCollector) Payload() any {
	if c.PhoneNumber == "" {
		return nil
	}
	return map[string]any{
		"countryCode": c.CountryCode,
		"phoneNumber": c.PhoneNumber,
	}
}

// Validate implements Validator
func (c *PhoneNumberCollector) Validate() []ValidationError {
	if c.Required && c.PhoneNumber == "" {
		return []ValidationError{required(c.FieldKey)}
	}
	return nil
}
