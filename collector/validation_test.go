package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(errs []ValidationError) []Kind {
	out := make([]Kind, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}

func TestPasswordPolicy(t *testing.T) {
	policy := &PasswordPolicy{
		MinLength:             8,
		MaxLength:             64,
		MinUniqueCharacters:   4,
		MaxRepeatedCharacters: 2,
	}

	t.Run("repeated characters", func(t *testing.T) {
		c := &PasswordCollector{FieldMeta: FieldMeta{FieldKey: "password"}, Policy: policy, Value: "aaaaaaaa"}

		errs := c.Validate()
		require.NotEmpty(t, errs)
		assert.Contains(t, kinds(errs), MaxRepeat)
		assert.Contains(t, kinds(errs), UniqueCharacter)
		assert.NotContains(t, kinds(errs), InvalidLength)
	})

	tests := []struct {
		name   string
		value  string
		policy *PasswordPolicy
		expect []Kind
	}{
		{name: "valid", value: "abcdefgh", policy: policy},
		{name: "too short", value: "abcd", policy: policy, expect: []Kind{InvalidLength}},
		{name: "two in a row allowed", value: "aabbccdd", policy: policy},
		{name: "three in a row", value: "aaabcdef", policy: policy, expect: []Kind{MaxRepeat}},
		{
			name:  "character sets",
			value: "abcdefgh",
			policy: &PasswordPolicy{MinCharacters: map[string]int{
				"0123456789":                 1,
				"abcdefghijklmnopqrstuvwxyz": 2,
			}},
			expect: []Kind{MinCharacters},
		},
		{name: "unicode length", value: "ææææ", policy: &PasswordPolicy{MaxLength: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.policy.Validate("password", tt.value)
			if tt.expect == nil {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.expect, kinds(errs))
			for _, e := range errs {
				assert.Equal(t, "password", e.Field)
				assert.NotEmpty(t, e.Error())
			}
		})
	}
}

func TestParsePasswordPolicy(t *testing.T) {
	p := ParsePasswordPolicy(map[string]any{
		"name":                  "Standard",
		"length":                map[string]any{"min": float64(8), "max": float64(255)},
		"minUniqueCharacters":   float64(5),
		"maxRepeatedCharacters": float64(2),
		"minCharacters": map[string]any{
			"0123456789": float64(1),
			"~!@#$%^&*":  float64(1),
		},
		"excludesCommonlyUsed": true,
	})

	require.NotNil(t, p)
	assert.Equal(t, "Standard", p.Name)
	assert.Equal(t, 8, p.MinLength)
	assert.Equal(t, 255, p.MaxLength)
	assert.Equal(t, 5, p.MinUniqueCharacters)
	assert.Equal(t, 2, p.MaxRepeatedCharacters)
	assert.Equal(t, map[string]int{"0123456789": 1, "~!@#$%^&*": 1}, p.MinCharacters)

	errs := p.Validate("pw", "Abcdefgh1!")
	assert.Empty(t, errs)

	assert.Nil(t, ParsePasswordPolicy(nil))
}

func TestRequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		collector Validator
	}{
		{"text", &TextCollector{FieldMeta: FieldMeta{FieldKey: "k", Required: true}}},
		{"password", &PasswordCollector{FieldMeta: FieldMeta{FieldKey: "k", Required: true}}},
		{"single select", &SingleSelectCollector{FieldMeta: FieldMeta{FieldKey: "k", Required: true}}},
		{"multi select", &MultiSelectCollector{FieldMeta: FieldMeta{FieldKey: "k", Required: true}}},
		{"phone", &PhoneNumberCollector{FieldMeta: FieldMeta{FieldKey: "k", Required: true}}},
		{"device registration", &DeviceRegistrationCollector{FieldMeta: FieldMeta{FieldKey: "k", Required: true}}},
		{"device authentication", &DeviceAuthenticationCollector{FieldMeta: FieldMeta{FieldKey: "k", Required: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.collector.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, Required, errs[0].Kind)
			assert.Equal(t, "k", errs[0].Field)
		})
	}
}

func TestInvalidRegexIsIgnored(t *testing.T) {
	c := &TextCollector{
		FieldMeta:  FieldMeta{FieldKey: "k"},
		Validation: &RegexValidation{Regex: "(["},
		Value:      "anything",
	}
	assert.Empty(t, c.Validate())
}
