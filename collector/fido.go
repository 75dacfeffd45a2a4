package collector

// FIDO2 field actions
const (
	FidoRegister     = "REGISTER"
	FidoAuthenticate = "AUTHENTICATE"
)

// NewFido2Collector parses a FIDO2 field into a registration or an
// authentication collector depending on its action. Unknown actions yield
// nil and the field is skipped.
func NewFido2Collector(field map[string]any) Collector {
	switch stringOf(field, "action") {
	case FidoRegister:
		return &Fido2RegistrationCollector{
			FieldMeta: NewFieldMeta(field),
			Trigger:   stringOf(field, "trigger"),
			Options:   mapOf(field, "publicKeyCredentialCreationOptions"),
		}
	case FidoAuthenticate:
		return &Fido2AuthenticationCollector{
			FieldMeta: NewFieldMeta(field),
			Trigger:   stringOf(field, "trigger"),
			Options:   mapOf(field, "publicKeyCredentialRequestOptions"),
		}
	}
	return nil
}

// Fido2RegistrationCollector carries the credential creation options and
// the attestation produced by the authenticator. The caller performs the
// ceremony and sets Attestation.
type Fido2RegistrationCollector struct {
	FieldMeta
	Trigger     string
	Options     map[string]any
	Attestation map[string]any
}

// Payload implements Collector
func (c *Fido2RegistrationCollector) Payload() any {
	if c.Attestation == nil {
		return nil
	}
	return map[string]any{"attestationValue": c.Attestation}
}

// Close drops the attestation
func (c *Fido2RegistrationCollector) Close() {
	c.Attestation = nil
}

// Fido2AuthenticationCollector carries the credential request options and
// the assertion produced by the authenticator.
type Fido2AuthenticationCollector struct {
	FieldMeta
	Trigger   string
	Options   map[string]any
	Assertion map[string]any
}

// Payload implements Collector
func (c *Fido2AuthenticationCollector) Payload() any {
	if c.Assertion == nil {
		return nil
	}
	return map[string]any{"assertionValue": c.Assertion}
}

// Close drops the assertion
func (c *Fido2AuthenticationCollector) Close() {
	c.Assertion = nil
}
