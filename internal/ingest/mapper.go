package ingest

import (
	"errors"
	"fmt"

	"github.com/pemsgate/pemsgate/internal/schema"
	"github.com/pemsgate/pemsgate/internal/units"
)

// Ingestion errors.
var (
	// ErrMissingRequiredField is returned when the column mapping does
	// not cover a field the dataset kind requires. The failure is
	// immediate: derived metrics assume completeness, so a partial
	// normalization would poison everything downstream.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrSourceColumnNotFound is returned when a mapped source column is
	// absent from the raw table.
	ErrSourceColumnNotFound = errors.New("source column not found")

	// ErrUnknownField is returned when the mapping names a canonical
	// field the dataset kind does not declare.
	ErrUnknownField = errors.New("unknown canonical field")
)

// Mapper rewrites raw tables into canonical SI-unit series.
type Mapper struct {
	registry *units.Registry
}

// NewMapper creates a Mapper backed by the given unit registry.
func NewMapper(registry *units.Registry) *Mapper {
	if registry == nil {
		registry = units.Default()
	}
	return &Mapper{registry: registry}
}

// Normalize validates the mapping against the dataset kind's canonical
// schema and produces a NormalizedSeries with every mapped column
// converted to its field's SI unit.
//
// Failure modes, all terminal for the run:
//   - ErrMissingRequiredField, naming the first uncovered required field
//   - ErrUnknownField for mapping keys outside the canonical schema
//   - ErrSourceColumnNotFound when a mapped column is not in the table
//   - units.ErrUnknownUnit for an undeclared source unit name
//   - units.ErrDimensionMismatch when the declared unit's dimension does
//     not match the field's, naming both the field and the unit
//
// Row order and the time axis are preserved verbatim.
func (m *Mapper) Normalize(raw *RawTable, kind schema.DatasetKind, mapping ColumnMapping) (*NormalizedSeries, error) {
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	fields, err := schema.FieldsFor(kind)
	if err != nil {
		return nil, err
	}

	// Required-field coverage first, before touching any data.
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if _, ok := mapping[f.Name]; !ok {
			return nil, fmt.Errorf("%w: %s field %q is not mapped", ErrMissingRequiredField, kind, f.Name)
		}
	}

	columns := make(map[string][]float64, len(mapping))
	for name, fm := range mapping {
		field, ok := schema.Lookup(kind, name)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a canonical %s field", ErrUnknownField, name, kind)
		}

		src, ok := raw.Columns[fm.SourceColumn]
		if !ok {
			return nil, fmt.Errorf("%w: field %q maps to column %q", ErrSourceColumnNotFound, name, fm.SourceColumn)
		}

		if fm.SourceUnit == "" {
			// Assumed already-SI; copied so the raw table stays intact.
			col := make([]float64, len(src))
			copy(col, src)
			columns[name] = col
			continue
		}

		dim, err := m.registry.DimensionOf(fm.SourceUnit)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if dim != field.Dimension {
			return nil, fmt.Errorf("%w: field %q expects %s, unit %q is %s",
				units.ErrDimensionMismatch, name, field.Dimension, fm.SourceUnit, dim)
		}

		converted, err := m.registry.ConvertSeries(src, fm.SourceUnit, field.SIUnit)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		columns[name] = converted
	}

	axis := make([]float64, len(raw.Time))
	copy(axis, raw.Time)

	return &NormalizedSeries{Kind: kind, Time: axis, columns: columns}, nil
}
