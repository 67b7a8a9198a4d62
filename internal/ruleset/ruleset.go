// Package ruleset loads declarative regulatory rule files into an
// immutable, typed tree of sections and limits. A rule file carries the
// thresholds the conformity evaluator applies, the unit-of-record for
// every measured quantity, and the policy knobs (phase boundaries,
// dynamics curves, correction factors) that derived-metric computation
// needs. Deployment-time overrides are merged leaf-by-leaf on top of the
// file defaults; unset numeric leaves stay pending rather than becoming
// zero.
package ruleset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pemsgate/pemsgate/internal/units"
)

// ErrMalformedRuleSpec is returned for structurally invalid rule files:
// unknown comparison kinds, undeclared unit names, dangling logical
// references, inverted ranges, or override keys that match no leaf.
var ErrMalformedRuleSpec = errors.New("malformed rule spec")

// ComparisonKind tells the evaluator how to compare a measured value
// against a limit.
type ComparisonKind string

const (
	// AtMost passes when measured <= limit.
	AtMost ComparisonKind = "at_most"
	// AtLeast passes when measured >= limit.
	AtLeast ComparisonKind = "at_least"
	// Range passes when low <= measured <= high.
	Range ComparisonKind = "range"
	// Logical is the AND of named sibling limits. A pending branch makes
	// the combined result pending, never vacuously true.
	Logical ComparisonKind = "logical"
	// Report records the measured value without judging it.
	Report ComparisonKind = "report"
)

// Limit is one named threshold inside a section.
type Limit struct {
	// Description is the human-readable check name, e.g. "CO2 zero drift".
	Description string
	// Clause cites the governing regulatory text.
	Clause string
	// Unit is the unit-of-record the measured value is expressed in.
	Unit string
	// Kind selects the comparison.
	Kind ComparisonKind
	// Value holds the threshold for AtMost/AtLeast.
	Value LimitValue
	// Low and High bound a Range comparison.
	Low  LimitValue
	High LimitValue
	// Of names the sibling limits a Logical comparison combines.
	Of []string
}

// ConditionText renders the comparison for report rows, e.g. "<= 100 ppm".
func (l *Limit) ConditionText() string {
	switch l.Kind {
	case AtMost:
		return fmt.Sprintf("<= %s %s", l.Value, l.Unit)
	case AtLeast:
		return fmt.Sprintf(">= %s %s", l.Value, l.Unit)
	case Range:
		return fmt.Sprintf("%s-%s %s", l.Low, l.High, l.Unit)
	case Logical:
		return fmt.Sprintf("all of %v", l.Of)
	default:
		return "reported"
	}
}

// Section groups related limits, e.g. span_zero or final_conformity.
type Section struct {
	Key    string
	Title  string
	Order  int
	Limits map[string]*Limit
}

// LimitKeys returns the section's limit names sorted for deterministic
// iteration.
func (s *Section) LimitKeys() []string {
	keys := make([]string, 0, len(s.Limits))
	for k := range s.Limits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PhasePolicy declares the speed-based trip phase classification. The
// rule file is authoritative; nothing is hardcoded in the evaluator.
type PhasePolicy struct {
	// UrbanMaxKmh is the exclusive upper speed bound of the urban phase.
	UrbanMaxKmh float64 `yaml:"urban_max_kmh"`
	// RuralMaxKmh is the exclusive upper bound of the rural phase;
	// samples above it are motorway.
	RuralMaxKmh float64 `yaml:"rural_max_kmh"`
}

// LinearBound is one branch of a piecewise-linear limit curve in average
// speed: limit(v) = Slope*v + Offset.
type LinearBound struct {
	Slope  float64 `yaml:"slope"`
	Offset float64 `yaml:"offset"`
}

// DynamicsPolicy holds the piecewise limit curves for trip dynamics.
type DynamicsPolicy struct {
	// VA95 bounds the 95th-percentile v*a scatter from above.
	VA95 struct {
		BreakKmh float64     `yaml:"break_kmh"`
		Low      LinearBound `yaml:"low"`
		High     LinearBound `yaml:"high"`
	} `yaml:"va95"`
	// RPA bounds positive relative acceleration from below; above the
	// break speed the bound is the constant HighMin.
	RPA struct {
		BreakKmh float64     `yaml:"break_kmh"`
		Low      LinearBound `yaml:"low"`
		HighMin  float64     `yaml:"high_min"`
	} `yaml:"rpa"`
	// AccelThresholdMs2 is the acceleration above which a sample counts
	// into the v*a scatter and the dynamic-event tally.
	AccelThresholdMs2 float64 `yaml:"accel_threshold_m_s2"`
}

// MAWPolicy declares the speed bands for moving-averaging-window
// coverage statistics.
type MAWPolicy struct {
	LowSpeedMaxKmh  float64 `yaml:"low_speed_max_kmh"`
	HighSpeedMinKmh float64 `yaml:"high_speed_min_kmh"`
	// WindowDistanceKm is the reference window length.
	WindowDistanceKm float64 `yaml:"window_distance_km"`
}

// ColdStartPolicy declares the cold-start correction settings.
type ColdStartPolicy struct {
	// WindowS is the cold-start window length in seconds from engine start.
	WindowS float64 `yaml:"window_s"`
	// ExtendedFactor multiplies emissions accrued during the window when
	// ambient temperature is in the extended band.
	ExtendedFactor float64 `yaml:"extended_factor"`
	// ExtendedBelowC and ExtendedAboveC bound the moderate ambient
	// temperature band; outside it the extended factor applies.
	ExtendedBelowC float64 `yaml:"extended_below_c"`
	ExtendedAboveC float64 `yaml:"extended_above_c"`
}

// Policies bundles the non-threshold configuration of a rule file.
type Policies struct {
	Phases    PhasePolicy     `yaml:"phases"`
	Dynamics  DynamicsPolicy  `yaml:"dynamics"`
	MAW       MAWPolicy       `yaml:"maw"`
	ColdStart ColdStartPolicy `yaml:"cold_start"`
}

// RuleSet is a fully loaded, merged and validated rule file. It is
// immutable after Load and safe to share across concurrent evaluation
// runs.
type RuleSet struct {
	Name     string
	Version  string
	Units    map[string]string
	Sections map[string]*Section
	Policies Policies
}

// Section returns a section by key.
func (rs *RuleSet) Section(key string) (*Section, bool) {
	s, ok := rs.Sections[key]
	return s, ok
}

// Limit resolves a section/limit pair.
func (rs *RuleSet) Limit(section, name string) (*Limit, bool) {
	s, ok := rs.Sections[section]
	if !ok {
		return nil, false
	}
	l, ok := s.Limits[name]
	return l, ok
}

// SectionKeys returns section keys in declared order.
func (rs *RuleSet) SectionKeys() []string {
	keys := make([]string, 0, len(rs.Sections))
	for k := range rs.Sections {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := rs.Sections[keys[i]], rs.Sections[keys[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Key < b.Key
	})
	return keys
}

// PendingLimits lists "section.limit" paths whose values are still
// unset, so reports can surface incomplete regulatory configuration.
func (rs *RuleSet) PendingLimits() []string {
	var pending []string
	for _, sk := range rs.SectionKeys() {
		section := rs.Sections[sk]
		for _, lk := range section.LimitKeys() {
			l := section.Limits[lk]
			switch l.Kind {
			case AtMost, AtLeast:
				if l.Value.IsPending() {
					pending = append(pending, sk+"."+lk)
				}
			case Range:
				if l.Low.IsPending() || l.High.IsPending() {
					pending = append(pending, sk+"."+lk)
				}
			}
		}
	}
	return pending
}

// validate enforces the structural invariants of a loaded rule set.
func (rs *RuleSet) validate(reg *units.Registry) error {
	for quantity, unit := range rs.Units {
		if !reg.Known(unit) {
			return fmt.Errorf("%w: units block declares unknown unit %q for %q",
				ErrMalformedRuleSpec, unit, quantity)
		}
	}
	for sk, section := range rs.Sections {
		for lk, l := range section.Limits {
			switch l.Kind {
			case AtMost, AtLeast, Range, Logical, Report:
			default:
				return fmt.Errorf("%w: %s.%s has unknown comparison kind %q",
					ErrMalformedRuleSpec, sk, lk, l.Kind)
			}
			if l.Unit != "" && !reg.Known(l.Unit) {
				return fmt.Errorf("%w: %s.%s references undeclared unit %q",
					ErrMalformedRuleSpec, sk, lk, l.Unit)
			}
			if l.Kind == Range {
				if low, ok := l.Low.Value(); ok {
					if high, ok2 := l.High.Value(); ok2 && low > high {
						return fmt.Errorf("%w: %s.%s range is inverted (%g > %g)",
							ErrMalformedRuleSpec, sk, lk, low, high)
					}
				}
			}
			if l.Kind == Logical {
				if len(l.Of) == 0 {
					return fmt.Errorf("%w: %s.%s is logical but names no sub-criteria",
						ErrMalformedRuleSpec, sk, lk)
				}
				for _, ref := range l.Of {
					if _, ok := section.Limits[ref]; !ok {
						return fmt.Errorf("%w: %s.%s references unknown sibling %q",
							ErrMalformedRuleSpec, sk, lk, ref)
					}
				}
			}
		}
	}
	return nil
}
