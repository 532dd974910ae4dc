// Package authoring loads knowledge and rule content from the external
// authoring store. The store is read-only from this process's perspective:
// content is authored elsewhere, this core only consumes versioned records.
package authoring

import (
	"context"

	"github.com/clinsafe-server/internal/domain"
)

// Source is a backing authoring store. Implementations load complete
// content sets; incremental updates are expressed as full reloads so the
// snapshot swap stays atomic.
type Source interface {
	// LoadKnowledge loads every concept, fact and keyword record.
	LoadKnowledge(ctx context.Context) (*domain.KnowledgeSet, error)

	// LoadRules loads every rule record, active or not.
	LoadRules(ctx context.Context) ([]domain.Rule, error)

	// Close releases the underlying connections.
	Close() error
}
