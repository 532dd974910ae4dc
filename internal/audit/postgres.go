package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinsafe-server/internal/database"
	"github.com/clinsafe-server/internal/domain"
)

// PostgresStore implements the Store interface on the shared Postgres pool.
// The overrides table is created via migrations.
type PostgresStore struct {
	db *database.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an established connection pool.
func NewPostgresStore(db *database.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &PostgresStore{db: db}, nil
}

// Save stores or updates the record for a correlation ID.
func (s *PostgresStore) Save(ctx context.Context, record *OverrideRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO overrides (
			correlation_id, signal_color, override_policy, decision,
			justification, supervisor_id, finding_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (correlation_id) DO UPDATE SET
			signal_color = EXCLUDED.signal_color,
			override_policy = EXCLUDED.override_policy,
			decision = EXCLUDED.decision,
			justification = EXCLUDED.justification,
			supervisor_id = EXCLUDED.supervisor_id,
			finding_count = EXCLUDED.finding_count,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`,
		record.CorrelationID,
		record.SignalColor.String(),
		record.OverridePolicy.String(),
		string(record.Decision),
		record.Justification,
		record.SupervisorID,
		record.FindingCount,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// Get retrieves the record for a correlation ID.
func (s *PostgresStore) Get(ctx context.Context, correlationID string) (*OverrideRecord, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, correlation_id, signal_color, override_policy, decision,
			justification, supervisor_id, finding_count, created_at, updated_at
		FROM overrides
		WHERE correlation_id = $1
	`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}

	rec, err := pgx.CollectOneRow(rows, collectRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect record: %w", err)
	}
	return rec, nil
}

// List returns records newest-first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*OverrideRecord, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, correlation_id, signal_color, override_policy, decision,
			justification, supervisor_id, finding_count, created_at, updated_at
		FROM overrides
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	records, err := pgx.CollectRows(rows, collectRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to collect records: %w", err)
	}
	return records, nil
}

// Count returns the total number of records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM overrides").Scan(&count)
	return count, err
}

// ExportJSON exports all records to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Records:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func collectRecord(row pgx.CollectableRow) (*OverrideRecord, error) {
	rec := &OverrideRecord{}
	var color, policy, decision string
	if err := row.Scan(
		&rec.ID, &rec.CorrelationID, &color, &policy, &decision,
		&rec.Justification, &rec.SupervisorID, &rec.FindingCount,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.SignalColor = domain.SignalColor(color)
	rec.OverridePolicy = domain.OverridePolicy(policy)
	rec.Decision = Decision(decision)
	return rec, nil
}
