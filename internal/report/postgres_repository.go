package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pemsgate/pemsgate/internal/conformity"
)

// PostgresRepository is a PostgreSQL implementation of Repository. The
// bundle is stored as a JSONB payload so report rows survive schema
// evolution of the verdict structure.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL report repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the reports table if it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
			trip_id    TEXT PRIMARY KEY,
			rule_set   TEXT NOT NULL,
			overall    TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure reports table: %w", err)
	}
	return nil
}

// Get retrieves the report for a trip.
func (r *PostgresRepository) Get(ctx context.Context, tripID string) (*StoredReport, error) {
	query := `
		SELECT trip_id, payload, created_at, updated_at
		FROM reports
		WHERE trip_id = $1
	`

	var stored StoredReport
	var payload []byte
	err := r.pool.QueryRow(ctx, query, tripID).Scan(
		&stored.TripID,
		&payload,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(payload, &stored.Bundle); err != nil {
		return nil, fmt.Errorf("decode report payload for trip %s: %w", tripID, err)
	}
	return &stored, nil
}

// Save stores a bundle under its trip ID, replacing any previous report.
func (r *PostgresRepository) Save(ctx context.Context, bundle *conformity.ReportBundle) (bool, error) {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return false, fmt.Errorf("encode report payload: %w", err)
	}

	query := `
		INSERT INTO reports (trip_id, rule_set, overall, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (trip_id) DO UPDATE SET
			rule_set = EXCLUDED.rule_set,
			overall = EXCLUDED.overall,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err = r.pool.QueryRow(ctx, query,
		bundle.TripID,
		bundle.RuleSet,
		string(bundle.Overall),
		payload,
		time.Now().UTC(),
	).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Delete removes a trip's report.
func (r *PostgresRepository) Delete(ctx context.Context, tripID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE trip_id = $1`, tripID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}

// List returns the trip IDs with a stored report, sorted.
func (r *PostgresRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT trip_id FROM reports ORDER BY trip_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
