package collector

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Kind classifies a validation error
type Kind string

const (
	Required        Kind = "required"
	RegexMismatch   Kind = "regexMismatch"
	InvalidLength   Kind = "invalidLength"
	UniqueCharacter Kind = "uniqueCharacter"
	MaxRepeat       Kind = "maxRepeat"
	MinCharacters   Kind = "minCharacters"
)

// ValidationError describes one problem with a field value
type ValidationError struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Min and Max carry the bounds for length, unique, repeat and
	// character-set violations.
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
	// Characters is the character set of a MinCharacters violation
	Characters string `json:"characters,omitempty"`
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

func required(field string) ValidationError {
	return ValidationError{Field: field, Kind: Required, Message: "value is required"}
}

func matchRegex(field, value, pattern, message string) *ValidationError {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		// an unusable server pattern cannot be enforced locally
		return nil
	}
	if re.MatchString(value) {
		return nil
	}
	if message == "" {
		message = fmt.Sprintf("value does not match %s", pattern)
	}
	return &ValidationError{Field: field, Kind: RegexMismatch, Message: message}
}

// PasswordPolicy is the passwordPolicy object of a DaVinci response
type PasswordPolicy struct {
	Name                  string
	MinLength             int
	MaxLength             int
	MinUniqueCharacters   int
	MaxRepeatedCharacters int
	// MinCharacters maps a character set to the number of characters of
	// that set the password must contain.
	MinCharacters map[string]int
}

// ParsePasswordPolicy reads a passwordPolicy object. It returns nil when
// policy is nil.
func ParsePasswordPolicy(policy map[string]any) *PasswordPolicy {
	if policy == nil {
		return nil
	}
	length := mapOf(policy, "length")
	p := &PasswordPolicy{
		Name:                  stringOf(policy, "name"),
		MinLength:             intOf(length, "min"),
		MaxLength:             intOf(length, "max"),
		MinUniqueCharacters:   intOf(policy, "minUniqueCharacters"),
		MaxRepeatedCharacters: intOf(policy, "maxRepeatedCharacters"),
	}
	if sets := mapOf(policy, "minCharacters"); len(sets) > 0 {
		p.MinCharacters = make(map[string]int, len(sets))
		for set := range sets {
			p.MinCharacters[set] = intOf(sets, set)
		}
	}
	return p
}

// Validate checks value against every rule of the policy. Zero-valued
// rules are not enforced.
func (p *PasswordPolicy) Validate(field, value string) []ValidationError {
	var errs []ValidationError
	length := utf8.RuneCountInString(value)

	if (p.MinLength > 0 && length < p.MinLength) || (p.MaxLength > 0 && length > p.MaxLength) {
		errs = append(errs, ValidationError{
			Field:   field,
			Kind:    InvalidLength,
			Message: fmt.Sprintf("length must be between %d and %d", p.MinLength, p.MaxLength),
			Min:     p.MinLength,
			Max:     p.MaxLength,
		})
	}

	if p.MinUniqueCharacters > 0 {
		if unique := uniqueCount(value); unique < p.MinUniqueCharacters {
			errs = append(errs, ValidationError{
				Field:   field,
				Kind:    UniqueCharacter,
				Message: fmt.Sprintf("must contain at least %d unique characters", p.MinUniqueCharacters),
				Min:     p.MinUniqueCharacters,
			})
		}
	}

	if p.MaxRepeatedCharacters > 0 {
		if run := longestRun(value); run > p.MaxRepeatedCharacters {
			errs = append(errs, ValidationError{
				Field:   field,
				Kind:    MaxRepeat,
				Message: fmt.Sprintf("must not repeat a character more than %d times in a row", p.MaxRepeatedCharacters),
				Max:     p.MaxRepeatedCharacters,
			})
		}
	}

	sets := make([]string, 0, len(p.MinCharacters))
	for set := range p.MinCharacters {
		sets = append(sets, set)
	}
	sort.Strings(sets)
	for _, set := range sets {
		want := p.MinCharacters[set]
		if want <= 0 {
			continue
		}
		if countIn(value, set) < want {
			errs = append(errs, ValidationError{
				Field:      field,
				Kind:       MinCharacters,
				Message:    fmt.Sprintf("must contain at least %d of %s", want, set),
				Min:        want,
				Characters: set,
			})
		}
	}

	return errs
}

func uniqueCount(s string) int {
	seen := map[rune]struct{}{}
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}

// longestRun returns the length of the longest run of one repeated character
func longestRun(s string) int {
	longest, run := 0, 0
	var prev rune
	for i, r := range []rune(s) {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		prev = r
		if run > longest {
			longest = run
		}
	}
	return longest
}

func countIn(s, set string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(set, r) {
			n++
		}
	}
	return n
}
