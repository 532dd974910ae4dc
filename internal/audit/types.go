// Package audit persists what clinicians did with emitted decision signals.
// The decision core itself stores nothing; this journal is the record that
// justification and supervisor requirements were actually met.
package audit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/clinsafe-server/internal/domain"
)

// Decision is what the clinician did with the signal.
type Decision string

const (
	DecisionAccepted   Decision = "accepted"
	DecisionOverridden Decision = "overridden"
)

// OverrideRecord captures one acknowledged decision signal and, when the
// signal was overridden, who did it and why.
type OverrideRecord struct {
	ID             int64                 `json:"id,omitempty"`
	CorrelationID  string                `json:"correlation_id"`
	SignalColor    domain.SignalColor    `json:"signal_color"`
	OverridePolicy domain.OverridePolicy `json:"override_policy"`
	Decision       Decision              `json:"decision"`
	Justification  string                `json:"justification,omitempty"`
	SupervisorID   string                `json:"supervisor_id,omitempty"`
	FindingCount   int                   `json:"finding_count"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Validate enforces the override policy the signal carried. A blocked signal
// can only be recorded as accepted; the other policies gate what the record
// must contain before it may say "overridden".
func (r *OverrideRecord) Validate() error {
	if strings.TrimSpace(r.CorrelationID) == "" {
		return fmt.Errorf("correlation_id is required")
	}
	if r.Decision != DecisionAccepted && r.Decision != DecisionOverridden {
		return fmt.Errorf("invalid decision %q", r.Decision)
	}
	if r.Decision != DecisionOverridden {
		return nil
	}

	switch r.OverridePolicy {
	case domain.OverrideBlocked:
		return fmt.Errorf("blocked signals cannot be overridden")
	case domain.OverrideRequiresSupervisor:
		if strings.TrimSpace(r.SupervisorID) == "" {
			return fmt.Errorf("supervisor_id is required to override this signal")
		}
		if strings.TrimSpace(r.Justification) == "" {
			return fmt.Errorf("justification is required to override this signal")
		}
	case domain.OverrideRequiresJustification:
		if strings.TrimSpace(r.Justification) == "" {
			return fmt.Errorf("justification is required to override this signal")
		}
	}
	return nil
}

// Store defines the interface for override journal storage.
type Store interface {
	// Save stores or updates the record for a correlation ID.
	Save(ctx context.Context, record *OverrideRecord) error

	// Get retrieves the record for a correlation ID, or nil if absent.
	Get(ctx context.Context, correlationID string) (*OverrideRecord, error)

	// List returns records newest-first with pagination.
	List(ctx context.Context, limit, offset int) ([]*OverrideRecord, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// ExportJSON exports all records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Records    []*OverrideRecord `json:"records"`
}
