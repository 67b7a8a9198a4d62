// Package ingest normalizes raw tabular telemetry into canonical,
// SI-unit series. Callers supply a per-dataset column mapping (canonical
// field -> source column and declared source unit); the mapper validates
// completeness against the schema registry, converts every sample
// through the unit registry and preserves row order and the original
// time axis. Resampling and alignment are the analysis layer's job.
package ingest

import (
	"errors"
	"fmt"

	"github.com/pemsgate/pemsgate/internal/schema"
)

// ErrBadTable is returned for raw tables that violate structural
// invariants (empty time axis, ragged columns).
var ErrBadTable = errors.New("malformed raw table")

// RawTable is an uploaded time series: a shared time axis (seconds since
// trip start) and named source columns of equal length.
type RawTable struct {
	Time    []float64            `json:"time"`
	Columns map[string][]float64 `json:"columns"`
}

// Validate checks the structural invariants of the raw table.
func (t *RawTable) Validate() error {
	if len(t.Time) == 0 {
		return fmt.Errorf("%w: empty time axis", ErrBadTable)
	}
	for name, col := range t.Columns {
		if len(col) != len(t.Time) {
			return fmt.Errorf("%w: column %q has %d samples, time axis has %d",
				ErrBadTable, name, len(col), len(t.Time))
		}
	}
	return nil
}

// FieldMapping binds a canonical field to a source column. SourceUnit is
// optional; when empty the column is assumed to already be in the
// field's SI unit and is passed through unchanged.
type FieldMapping struct {
	SourceColumn string `json:"sourceColumn"`
	SourceUnit   string `json:"sourceUnit,omitempty"`
}

// ColumnMapping maps canonical field names to their source columns for
// one ingestion job. It is supplied by the caller and not persisted.
type ColumnMapping map[string]FieldMapping

// NormalizedSeries is a canonical, SI-unit table sharing one time axis.
// Every column has the same length as the axis. It is immutable once
// built.
type NormalizedSeries struct {
	Kind    schema.DatasetKind
	Time    []float64
	columns map[string][]float64
}

// Column returns the samples of a canonical field.
func (s *NormalizedSeries) Column(name string) ([]float64, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// Has reports whether a canonical field was mapped.
func (s *NormalizedSeries) Has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Fields lists the mapped canonical field names.
func (s *NormalizedSeries) Fields() []string {
	out := make([]string, 0, len(s.columns))
	for name := range s.columns {
		out = append(out, name)
	}
	return out
}

// Len returns the number of samples.
func (s *NormalizedSeries) Len() int { return len(s.Time) }
