package authoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/clinsafe-server/internal/domain"
)

// SQLiteSource reads authored content from an embedded SQLite file. The
// database is opened read-only: the never-mutate-backing-data invariant is
// enforced by the connection mode, not convention.
type SQLiteSource struct {
	db     *sql.DB
	dbPath string
}

var _ Source = (*SQLiteSource)(nil)

// NewSQLiteSource opens the authoring database read-only and verifies it is
// reachable.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open authoring database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("authoring database unreachable: %w", err)
	}
	return &SQLiteSource{db: db, dbPath: dbPath}, nil
}

// LoadKnowledge loads every concept, fact and keyword record. Facts carry
// their own is_active flag; inactive facts are excluded here while inactive
// concepts are kept for historical id lookups.
func (s *SQLiteSource) LoadKnowledge(ctx context.Context) (*domain.KnowledgeSet, error) {
	set := &domain.KnowledgeSet{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, kind, is_active
		FROM concepts
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Concept
		var kind string
		if err := rows.Scan(&c.ID, &c.DisplayName, &kind, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		c.Kind = domain.ConceptKind(kind)
		set.Concepts = append(set.Concepts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("concepts iteration: %w", err)
	}

	if set.IngredientLinks, err = s.loadIngredientLinks(ctx); err != nil {
		return nil, err
	}
	if set.Interactions, err = s.loadInteractions(ctx); err != nil {
		return nil, err
	}
	if set.Contraindications, err = s.loadContraindications(ctx); err != nil {
		return nil, err
	}
	if set.ConditionKeywords, err = s.loadConditionKeywords(ctx); err != nil {
		return nil, err
	}
	if set.PairKeywords, err = s.loadPairKeywords(ctx); err != nil {
		return nil, err
	}

	return set, nil
}

func (s *SQLiteSource) loadIngredientLinks(ctx context.Context) ([]domain.IngredientLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_id, ingredient_id
		FROM ingredient_links
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredient links: %w", err)
	}
	defer rows.Close()

	var links []domain.IngredientLink
	for rows.Next() {
		var l domain.IngredientLink
		if err := rows.Scan(&l.DrugID, &l.IngredientID); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *SQLiteSource) loadInteractions(ctx context.Context) ([]domain.InteractionFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_a, drug_b, severity, description, source
		FROM interactions
		WHERE is_active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var facts []domain.InteractionFact
	for rows.Next() {
		var f domain.InteractionFact
		var severity string
		if err := rows.Scan(&f.DrugA, &f.DrugB, &severity, &f.Description, &f.Source); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		f.Severity = domain.Severity(severity)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (s *SQLiteSource) loadContraindications(ctx context.Context) ([]domain.ContraindicationFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT drug_id, diagnosis_id, severity, reason
		FROM contraindications
		WHERE is_active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contraindications: %w", err)
	}
	defer rows.Close()

	var facts []domain.ContraindicationFact
	for rows.Next() {
		var f domain.ContraindicationFact
		var severity string
		if err := rows.Scan(&f.DrugID, &f.DiagnosisID, &severity, &f.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan contraindication: %w", err)
		}
		f.Severity = domain.Severity(severity)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (s *SQLiteSource) loadConditionKeywords(ctx context.Context) ([]domain.ConditionKeyword, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, concept_id
		FROM condition_keywords
		WHERE is_active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query condition keywords: %w", err)
	}
	defer rows.Close()

	var keywords []domain.ConditionKeyword
	for rows.Next() {
		var kw domain.ConditionKeyword
		if err := rows.Scan(&kw.Keyword, &kw.ConceptID); err != nil {
			return nil, fmt.Errorf("failed to scan condition keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

func (s *SQLiteSource) loadPairKeywords(ctx context.Context) ([]domain.PairKeyword, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, drug_id
		FROM pair_keywords
		WHERE is_active = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pair keywords: %w", err)
	}
	defer rows.Close()

	var keywords []domain.PairKeyword
	for rows.Next() {
		var kw domain.PairKeyword
		if err := rows.Scan(&kw.Keyword, &kw.DrugID); err != nil {
			return nil, fmt.Errorf("failed to scan pair keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// LoadRules loads every rule record including inactive ones; the compiler
// owns active filtering so disabling a rule is purely a data change.
func (s *SQLiteSource) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, category, priority, severity, logic, is_active, version
		FROM rules
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		var r domain.Rule
		var severity, logic string
		if err := rows.Scan(&r.RuleID, &r.Category, &r.Priority, &severity, &logic, &r.IsActive, &r.Version); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Severity = domain.Severity(severity)
		r.Logic = json.RawMessage(logic)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Close closes the source and releases resources.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
