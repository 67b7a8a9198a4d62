package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pemsgate/pemsgate/internal/conformity"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-node deployments without a
// database. Bundles are stored in their encoded form so readers always
// get an isolated copy.
type InMemoryRepository struct {
	mu      sync.RWMutex
	reports map[string]*memoryRecord
}

type memoryRecord struct {
	payload   []byte
	createdAt time.Time
	updatedAt time.Time
}

// NewInMemoryRepository creates a new in-memory report repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{reports: make(map[string]*memoryRecord)}
}

// Get retrieves the report for a trip.
func (r *InMemoryRepository) Get(_ context.Context, tripID string) (*StoredReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.reports[tripID]
	if !ok {
		return nil, ErrReportNotFound
	}

	var bundle conformity.ReportBundle
	if err := json.Unmarshal(record.payload, &bundle); err != nil {
		return nil, fmt.Errorf("decode report payload for trip %s: %w", tripID, err)
	}
	return &StoredReport{
		TripID:    tripID,
		Bundle:    &bundle,
		CreatedAt: record.createdAt,
		UpdatedAt: record.updatedAt,
	}, nil
}

// Save stores a bundle under its trip ID, replacing any previous report.
func (r *InMemoryRepository) Save(_ context.Context, bundle *conformity.ReportBundle) (bool, error) {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return false, fmt.Errorf("encode report payload: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.reports[bundle.TripID]; ok {
		existing.payload = payload
		existing.updatedAt = now
		return false, nil
	}
	r.reports[bundle.TripID] = &memoryRecord{payload: payload, createdAt: now, updatedAt: now}
	return true, nil
}

// Delete removes a trip's report.
func (r *InMemoryRepository) Delete(_ context.Context, tripID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[tripID]; !ok {
		return ErrReportNotFound
	}
	delete(r.reports, tripID)
	return nil
}

// List returns the trip IDs with a stored report, sorted.
func (r *InMemoryRepository) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.reports))
	for id := range r.reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
