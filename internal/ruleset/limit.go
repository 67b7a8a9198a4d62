package ruleset

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// LimitValue is a numeric threshold that may be explicitly unset. A
// regulatory rule file ships before every number is finalized; unset
// leaves are written as "TODO" (or null) and must stay distinguishable
// from zero, otherwise every at-most check against an unset limit would
// spuriously fail. The zero LimitValue is Pending.
type LimitValue struct {
	configured bool
	value      float64
}

// Configured returns a LimitValue holding a finalized number.
func Configured(v float64) LimitValue {
	return LimitValue{configured: true, value: v}
}

// Pending returns the unset sentinel.
func Pending() LimitValue {
	return LimitValue{}
}

// IsPending reports whether the value is still unset.
func (v LimitValue) IsPending() bool { return !v.configured }

// Value returns the configured number; ok is false while pending.
func (v LimitValue) Value() (float64, bool) {
	return v.value, v.configured
}

// String renders the value for condition text and logs.
func (v LimitValue) String() string {
	if !v.configured {
		return "pending"
	}
	return fmt.Sprintf("%g", v.value)
}

// UnmarshalYAML accepts a number, null, or the literal "TODO" (case
// insensitive). Anything else is a malformed rule file.
func (v *LimitValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*v = Pending()
		return nil
	}
	if node.Tag == "!!str" {
		if strings.EqualFold(strings.TrimSpace(node.Value), "TODO") {
			*v = Pending()
			return nil
		}
		return fmt.Errorf("%w: limit value %q is neither a number nor TODO", ErrMalformedRuleSpec, node.Value)
	}
	var f float64
	if err := node.Decode(&f); err != nil {
		return fmt.Errorf("%w: limit value %q is not numeric", ErrMalformedRuleSpec, node.Value)
	}
	*v = Configured(f)
	return nil
}

// MarshalYAML renders pending values back as TODO.
func (v LimitValue) MarshalYAML() (interface{}, error) {
	if !v.configured {
		return "TODO", nil
	}
	return v.value, nil
}
