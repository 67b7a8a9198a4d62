// Package schema declares the canonical field layout of the supported
// telemetry dataset kinds. The registry is constructed once and read-only
// afterwards; the ingestion mapper uses it to validate completeness and
// unit dimensions, and mapping UIs use it to render required/optional
// field groupings.
package schema

import (
	"fmt"

	"github.com/pemsgate/pemsgate/internal/units"
)

// DatasetKind identifies one of the supported telemetry sources.
type DatasetKind string

const (
	// PEMS is the portable emissions measurement system (gas analyzer).
	PEMS DatasetKind = "pems"
	// GPS is the position/speed trace.
	GPS DatasetKind = "gps"
	// ECU is the vehicle bus / exhaust flow data.
	ECU DatasetKind = "ecu"
)

// Kinds lists the dataset kinds in presentation order.
func Kinds() []DatasetKind { return []DatasetKind{PEMS, GPS, ECU} }

// Field describes one canonical column of a dataset kind.
type Field struct {
	// Name is the canonical field name, e.g. "nox_mg_s".
	Name string `json:"name"`

	// Required marks fields the mapper refuses to proceed without.
	Required bool `json:"required"`

	// Dimension is the physical dimension a mapped source column must
	// carry. Declaring a source unit of another dimension is a hard
	// ingestion failure.
	Dimension units.Dimension `json:"dimension"`

	// SIUnit is the unit samples are stored in after normalization.
	SIUnit string `json:"siUnit"`
}

// FieldsFor returns the canonical fields of a dataset kind, required
// fields first. The returned slice is a copy.
func FieldsFor(kind DatasetKind) ([]Field, error) {
	fields, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown dataset kind %q", kind)
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out, nil
}

// Lookup returns a single canonical field by name.
func Lookup(kind DatasetKind, name string) (Field, bool) {
	for _, f := range registry[kind] {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Payload is the JSON shape served to mapping assistants.
type Payload struct {
	Kind     DatasetKind `json:"kind"`
	Label    string      `json:"label"`
	Required []Field     `json:"required"`
	Optional []Field     `json:"optional"`
}

// AsPayload returns all canonical schemas grouped for presentation.
func AsPayload() []Payload {
	labels := map[DatasetKind]string{PEMS: "PEMS", GPS: "GPS", ECU: "ECU"}
	out := make([]Payload, 0, len(registry))
	for _, kind := range Kinds() {
		p := Payload{Kind: kind, Label: labels[kind]}
		for _, f := range registry[kind] {
			if f.Required {
				p.Required = append(p.Required, f)
			} else {
				p.Optional = append(p.Optional, f)
			}
		}
		out = append(out, p)
	}
	return out
}

// registry is populated at init and never written again.
var registry = map[DatasetKind][]Field{
	PEMS: {
		{Name: "nox_mg_s", Required: true, Dimension: units.MassFlow, SIUnit: "mg/s"},
		{Name: "pn_1_s", Required: true, Dimension: units.CountFlow, SIUnit: "1/s"},
		{Name: "co_mg_s", Dimension: units.MassFlow, SIUnit: "mg/s"},
		{Name: "co2_g_s", Dimension: units.MassFlow, SIUnit: "g/s"},
		{Name: "thc_mg_s", Dimension: units.MassFlow, SIUnit: "mg/s"},
		{Name: "pm_mg_s", Dimension: units.MassFlow, SIUnit: "mg/s"},
		{Name: "exhaust_flow_kg_s", Dimension: units.MassFlow, SIUnit: "kg/s"},
		{Name: "exhaust_temp_c", Dimension: units.Temperature, SIUnit: "degC"},
		{Name: "amb_temp_c", Dimension: units.Temperature, SIUnit: "degC"},
		{Name: "amb_pressure_kpa", Dimension: units.Pressure, SIUnit: "kPa"},
		{Name: "veh_speed_m_s", Dimension: units.Speed, SIUnit: "m/s"},
	},
	GPS: {
		{Name: "lat", Required: true, Dimension: units.Dimensionless, SIUnit: "deg"},
		{Name: "lon", Required: true, Dimension: units.Dimensionless, SIUnit: "deg"},
		{Name: "speed_m_s", Dimension: units.Speed, SIUnit: "m/s"},
		{Name: "alt_m", Dimension: units.Distance, SIUnit: "m"},
	},
	ECU: {
		{Name: "veh_speed_m_s", Dimension: units.Speed, SIUnit: "m/s"},
		{Name: "engine_speed_rpm", Dimension: units.Frequency, SIUnit: "rpm"},
		{Name: "engine_load_pct", Dimension: units.Dimensionless, SIUnit: "%"},
		{Name: "throttle_pct", Dimension: units.Dimensionless, SIUnit: "%"},
	},
}
