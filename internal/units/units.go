// Package units provides dimensional analysis and unit conversion for
// telemetry ingestion. A process-wide read-only registry maps unit names
// to their physical dimension and conversion rule; conversions are only
// permitted between units of the same dimension.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// Conversion errors.
var (
	// ErrUnknownUnit is returned when a unit name is not in the registry.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrDimensionMismatch is returned when converting between units of
	// different physical dimensions.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrUnsupportedConversion is returned for conversions that need
	// external context the registry does not carry, such as converting a
	// gas concentration (ppm) to a mass flow (mg/s). That conversion
	// depends on exhaust temperature, pressure and molar mass and must be
	// performed by the caller before ingestion.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
)

// Dimension identifies the physical dimension a unit measures.
type Dimension string

const (
	Mass          Dimension = "mass"
	MassFlow      Dimension = "mass_flow"
	VolumeFlow    Dimension = "volume_flow"
	Temperature   Dimension = "temperature"
	Pressure      Dimension = "pressure"
	Concentration Dimension = "concentration"
	Count         Dimension = "count"
	CountFlow     Dimension = "count_flow"
	CountDensity  Dimension = "count_density"
	Distance      Dimension = "distance"
	Time          Dimension = "time"
	Speed         Dimension = "speed"
	Acceleration  Dimension = "acceleration"
	Frequency     Dimension = "frequency"
	Dimensionless Dimension = "dimensionless"

	// MassPerDistance and CountPerDistance carry distance-specific
	// emission factors (mg/km, #/km).
	MassPerDistance  Dimension = "mass_per_distance"
	CountPerDistance Dimension = "count_per_distance"

	// SpecificPower carries the v*a dynamics scatter statistic (m2/s3).
	SpecificPower Dimension = "specific_power"
)

// Unit describes a named unit and its conversion rule to the dimension's
// base unit. The rule is affine: base = value*Scale + Offset. Purely
// multiplicative units have Offset zero; temperature units use the full
// affine form (degC -> K is +273.15, never a ratio).
type Unit struct {
	Name      string
	Dimension Dimension
	Scale     float64
	Offset    float64
}

// toBase converts a value in this unit to the dimension's base unit.
func (u Unit) toBase(v float64) float64 {
	return v*u.Scale + u.Offset
}

// fromBase converts a value in the dimension's base unit to this unit.
func (u Unit) fromBase(v float64) float64 {
	return (v - u.Offset) / u.Scale
}

// Registry holds a fixed set of units keyed by name. It is immutable
// after construction and safe for concurrent use.
type Registry struct {
	units map[string]Unit
}

// NewRegistry builds a registry from the given units plus alias names.
// Later entries with the same normalized name win.
func NewRegistry(defs []Unit, aliases map[string]string) *Registry {
	r := &Registry{units: make(map[string]Unit, len(defs)+len(aliases))}
	for _, u := range defs {
		r.units[normalize(u.Name)] = u
	}
	for alias, target := range aliases {
		if u, ok := r.units[normalize(target)]; ok {
			r.units[normalize(alias)] = u
		}
	}
	return r
}

// Lookup resolves a unit name. Names are matched case-insensitively and
// degree signs are ignored, so "°C", "degC" and "degc" all resolve to
// the Celsius unit.
func (r *Registry) Lookup(name string) (Unit, error) {
	u, ok := r.units[normalize(name)]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
	}
	return u, nil
}

// Convert converts a value between two named units of the same
// dimension. Cross-dimension conversions fail with ErrDimensionMismatch,
// except concentration to mass/count flow which fails with
// ErrUnsupportedConversion since it needs exhaust conditions the
// registry does not know.
func (r *Registry) Convert(value float64, from, to string) (float64, error) {
	fu, err := r.Lookup(from)
	if err != nil {
		return 0, err
	}
	tu, err := r.Lookup(to)
	if err != nil {
		return 0, err
	}
	if fu.Dimension != tu.Dimension {
		if isConcentrationToFlow(fu.Dimension, tu.Dimension) {
			return 0, fmt.Errorf("%w: %q -> %q requires exhaust temperature, pressure and molar mass",
				ErrUnsupportedConversion, from, to)
		}
		return 0, fmt.Errorf("%w: %q is %s, %q is %s",
			ErrDimensionMismatch, from, fu.Dimension, to, tu.Dimension)
	}
	return tu.fromBase(fu.toBase(value)), nil
}

// ConvertSeries converts every sample of a column in place-safe copy
// semantics: the input slice is not modified.
func (r *Registry) ConvertSeries(values []float64, from, to string) ([]float64, error) {
	fu, err := r.Lookup(from)
	if err != nil {
		return nil, err
	}
	tu, err := r.Lookup(to)
	if err != nil {
		return nil, err
	}
	if fu.Dimension != tu.Dimension {
		if isConcentrationToFlow(fu.Dimension, tu.Dimension) {
			return nil, fmt.Errorf("%w: %q -> %q requires exhaust temperature, pressure and molar mass",
				ErrUnsupportedConversion, from, to)
		}
		return nil, fmt.Errorf("%w: %q is %s, %q is %s",
			ErrDimensionMismatch, from, fu.Dimension, to, tu.Dimension)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = tu.fromBase(fu.toBase(v))
	}
	return out, nil
}

// DimensionOf returns the dimension of a named unit.
func (r *Registry) DimensionOf(name string) (Dimension, error) {
	u, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return u.Dimension, nil
}

// Known reports whether a unit name resolves in the registry.
func (r *Registry) Known(name string) bool {
	_, ok := r.units[normalize(name)]
	return ok
}

func isConcentrationToFlow(from, to Dimension) bool {
	if from == Concentration && (to == MassFlow || to == CountFlow) {
		return true
	}
	if to == Concentration && (from == MassFlow || from == CountFlow) {
		return true
	}
	return false
}

func normalize(name string) string {
	s := strings.ReplaceAll(name, "°", "")
	s = strings.ReplaceAll(s, "µ", "u")
	return strings.ToLower(strings.TrimSpace(s))
}
