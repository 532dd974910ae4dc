package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clinsafe-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite override journal.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*OverrideRecord, error) {
	rec := &OverrideRecord{}
	var color, policy, decision string

	err := s.Scan(
		&rec.ID, &rec.CorrelationID, &color, &policy, &decision,
		&rec.Justification, &rec.SupervisorID, &rec.FindingCount,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.SignalColor = domain.SignalColor(color)
	rec.OverridePolicy = domain.OverridePolicy(policy)
	rec.Decision = Decision(decision)
	return rec, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		correlation_id TEXT NOT NULL UNIQUE,
		signal_color TEXT NOT NULL,
		override_policy TEXT NOT NULL,
		decision TEXT NOT NULL,
		justification TEXT DEFAULT '',
		supervisor_id TEXT DEFAULT '',
		finding_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_overrides_created_at ON overrides(created_at);
	CREATE INDEX IF NOT EXISTS idx_overrides_decision ON overrides(decision);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates the record for a correlation ID.
func (s *SQLiteStore) Save(ctx context.Context, record *OverrideRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	now := time.Now()

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM overrides WHERE correlation_id = ?",
		record.CorrelationID,
	).Scan(&existingID)

	if err == nil {
		record.ID = existingID
		record.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE overrides SET
				signal_color = ?,
				override_policy = ?,
				decision = ?,
				justification = ?,
				supervisor_id = ?,
				finding_count = ?,
				updated_at = ?
			WHERE id = ?
		`,
			record.SignalColor.String(),
			record.OverridePolicy.String(),
			string(record.Decision),
			record.Justification,
			record.SupervisorID,
			record.FindingCount,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (
			correlation_id, signal_color, override_policy, decision,
			justification, supervisor_id, finding_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.CorrelationID,
		record.SignalColor.String(),
		record.OverridePolicy.String(),
		string(record.Decision),
		record.Justification,
		record.SupervisorID,
		record.FindingCount,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	record.ID = id

	return nil
}

// Get retrieves the record for a correlation ID.
func (s *SQLiteStore) Get(ctx context.Context, correlationID string) (*OverrideRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, correlation_id, signal_color, override_policy, decision,
			justification, supervisor_id, finding_count, created_at, updated_at
		FROM overrides
		WHERE correlation_id = ?
		LIMIT 1
	`, correlationID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns records newest-first with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*OverrideRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, correlation_id, signal_color, override_policy, decision,
			justification, supervisor_id, finding_count, created_at, updated_at
		FROM overrides
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*OverrideRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM overrides").Scan(&count)
	return count, err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all records to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
