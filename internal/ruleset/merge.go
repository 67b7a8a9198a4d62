package ruleset

import (
	"fmt"
	"strings"
)

// Overrides maps dotted leaf paths onto replacement values, e.g.
//
//	{"span_zero.limits.co2_zero_ppm": 50}
//
// The default leaf is the limit's value; range bounds are addressed with
// a trailing ".low" or ".high". Values may be numeric, nil or "TODO"
// (both meaning pending). Overrides replace values only — they never
// introduce structure, and unknown paths are rejected so a typo cannot
// silently leave a file default in force.
type Overrides map[string]interface{}

// applyOverrides merges the overrides into the loaded tree,
// last-write-wins at the leaf-value level.
func (rs *RuleSet) applyOverrides(overrides Overrides) error {
	for path, raw := range overrides {
		value, err := coerceOverride(path, raw)
		if err != nil {
			return err
		}

		parts := strings.Split(path, ".")
		if len(parts) < 3 || len(parts) > 4 || parts[1] != "limits" {
			return fmt.Errorf("%w: override path %q must be section.limits.name[.low|.high]",
				ErrMalformedRuleSpec, path)
		}

		limit, ok := rs.Limit(parts[0], parts[2])
		if !ok {
			return fmt.Errorf("%w: override path %q matches no declared limit",
				ErrMalformedRuleSpec, path)
		}

		leaf := "value"
		if len(parts) == 4 {
			leaf = parts[3]
		}
		switch leaf {
		case "value":
			limit.Value = value
		case "low":
			limit.Low = value
		case "high":
			limit.High = value
		default:
			return fmt.Errorf("%w: override path %q has unknown leaf %q",
				ErrMalformedRuleSpec, path, leaf)
		}
	}
	return nil
}

func coerceOverride(path string, raw interface{}) (LimitValue, error) {
	switch v := raw.(type) {
	case nil:
		return Pending(), nil
	case float64:
		return Configured(v), nil
	case float32:
		return Configured(float64(v)), nil
	case int:
		return Configured(float64(v)), nil
	case int64:
		return Configured(float64(v)), nil
	case LimitValue:
		return v, nil
	case string:
		if strings.EqualFold(strings.TrimSpace(v), "TODO") {
			return Pending(), nil
		}
	}
	return LimitValue{}, fmt.Errorf("%w: override %q has non-numeric value %v",
		ErrMalformedRuleSpec, path, raw)
}
