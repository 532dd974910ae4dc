package authoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinsafe-server/internal/database"
	"github.com/clinsafe-server/internal/domain"
)

// PostgresSource reads authored content from the shared Postgres authoring
// store. Queries are read-only; writes belong to the authoring application.
type PostgresSource struct {
	db *database.DB
}

var _ Source = (*PostgresSource)(nil)

// NewPostgresSource wraps an established connection pool.
func NewPostgresSource(db *database.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// LoadKnowledge loads every concept, fact and keyword record.
func (s *PostgresSource) LoadKnowledge(ctx context.Context) (*domain.KnowledgeSet, error) {
	set := &domain.KnowledgeSet{}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, display_name, kind, is_active
		FROM concepts
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	set.Concepts, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Concept, error) {
		var c domain.Concept
		var kind string
		if err := row.Scan(&c.ID, &c.DisplayName, &kind, &c.Active); err != nil {
			return c, err
		}
		c.Kind = domain.ConceptKind(kind)
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect concepts: %w", err)
	}

	rows, err = s.db.Pool.Query(ctx, `
		SELECT drug_id, ingredient_id
		FROM ingredient_links
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredient links: %w", err)
	}
	set.IngredientLinks, err = pgx.CollectRows(rows, pgx.RowToStructByPos[domain.IngredientLink])
	if err != nil {
		return nil, fmt.Errorf("failed to collect ingredient links: %w", err)
	}

	rows, err = s.db.Pool.Query(ctx, `
		SELECT drug_a, drug_b, severity, description, source
		FROM interactions
		WHERE is_active
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	set.Interactions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InteractionFact, error) {
		var f domain.InteractionFact
		var severity string
		if err := row.Scan(&f.DrugA, &f.DrugB, &severity, &f.Description, &f.Source); err != nil {
			return f, err
		}
		f.Severity = domain.Severity(severity)
		return f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect interactions: %w", err)
	}

	rows, err = s.db.Pool.Query(ctx, `
		SELECT drug_id, diagnosis_id, severity, reason
		FROM contraindications
		WHERE is_active
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contraindications: %w", err)
	}
	set.Contraindications, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ContraindicationFact, error) {
		var f domain.ContraindicationFact
		var severity string
		if err := row.Scan(&f.DrugID, &f.DiagnosisID, &severity, &f.Reason); err != nil {
			return f, err
		}
		f.Severity = domain.Severity(severity)
		return f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect contraindications: %w", err)
	}

	rows, err = s.db.Pool.Query(ctx, `
		SELECT keyword, concept_id
		FROM condition_keywords
		WHERE is_active
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query condition keywords: %w", err)
	}
	set.ConditionKeywords, err = pgx.CollectRows(rows, pgx.RowToStructByPos[domain.ConditionKeyword])
	if err != nil {
		return nil, fmt.Errorf("failed to collect condition keywords: %w", err)
	}

	rows, err = s.db.Pool.Query(ctx, `
		SELECT keyword, drug_id
		FROM pair_keywords
		WHERE is_active
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair keywords: %w", err)
	}
	set.PairKeywords, err = pgx.CollectRows(rows, pgx.RowToStructByPos[domain.PairKeyword])
	if err != nil {
		return nil, fmt.Errorf("failed to collect pair keywords: %w", err)
	}

	return set, nil
}

// LoadRules loads every rule record, active or not.
func (s *PostgresSource) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT rule_id, category, priority, severity, logic, is_active, version
		FROM rules
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Rule, error) {
		var r domain.Rule
		var severity string
		var logic []byte
		if err := row.Scan(&r.RuleID, &r.Category, &r.Priority, &severity, &logic, &r.IsActive, &r.Version); err != nil {
			return r, err
		}
		r.Severity = domain.Severity(severity)
		r.Logic = json.RawMessage(logic)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect rules: %w", err)
	}
	return rules, nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	s.db.Close()
	return nil
}
