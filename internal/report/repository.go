// Package report persists evaluation report bundles keyed by trip ID.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/pemsgate/pemsgate/internal/conformity"
)

// ErrReportNotFound is returned when no report exists for a trip.
var ErrReportNotFound = errors.New("report not found")

// StoredReport wraps a persisted bundle with storage metadata.
type StoredReport struct {
	TripID    string                   `json:"tripId"`
	Bundle    *conformity.ReportBundle `json:"bundle"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// Repository defines the interface for report persistence. A trip has
// at most one report; saving again replaces it.
type Repository interface {
	// Get retrieves the report for a trip.
	Get(ctx context.Context, tripID string) (*StoredReport, error)

	// Save stores a bundle under its trip ID. Returns true when the
	// report is new, false when an existing one was replaced.
	Save(ctx context.Context, bundle *conformity.ReportBundle) (created bool, err error)

	// Delete removes a trip's report.
	Delete(ctx context.Context, tripID string) error

	// List returns the trip IDs with a stored report, sorted.
	List(ctx context.Context) ([]string, error)
}
