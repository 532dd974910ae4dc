package authoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/clinsafe-server/internal/domain"
)

// sqliteSchema mirrors migrations/0001_init.up.sql for the embedded driver.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS concepts (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS ingredient_links (
	drug_id TEXT NOT NULL,
	ingredient_id TEXT NOT NULL,
	PRIMARY KEY (drug_id, ingredient_id)
);

CREATE TABLE IF NOT EXISTS interactions (
	drug_a TEXT NOT NULL,
	drug_b TEXT NOT NULL,
	severity TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (drug_a, drug_b)
);

CREATE TABLE IF NOT EXISTS contraindications (
	drug_id TEXT NOT NULL,
	diagnosis_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (drug_id, diagnosis_id)
);

CREATE TABLE IF NOT EXISTS condition_keywords (
	keyword TEXT NOT NULL,
	concept_id TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (keyword, concept_id)
);

CREATE TABLE IF NOT EXISTS pair_keywords (
	keyword TEXT NOT NULL,
	drug_id TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (keyword, drug_id)
);

CREATE TABLE IF NOT EXISTS rules (
	rule_id TEXT PRIMARY KEY,
	category TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	severity TEXT NOT NULL,
	logic TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_concepts_kind ON concepts(kind);
CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(is_active);
`

// SeedSQLite creates (or extends) an authoring database and writes the
// given content set. Used by the seed command and by tests; the serving
// path never opens the database writable.
func SeedSQLite(ctx context.Context, dbPath string, set *domain.KnowledgeSet, rules []domain.Rule) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range set.Concepts {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO concepts (id, display_name, kind, is_active)
			VALUES (?, ?, ?, ?)
		`, c.ID, c.DisplayName, string(c.Kind), c.Active); err != nil {
			return fmt.Errorf("failed to insert concept %s: %w", c.ID, err)
		}
	}
	for _, l := range set.IngredientLinks {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO ingredient_links (drug_id, ingredient_id)
			VALUES (?, ?)
		`, l.DrugID, l.IngredientID); err != nil {
			return fmt.Errorf("failed to insert ingredient link: %w", err)
		}
	}
	for _, f := range set.Interactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO interactions (drug_a, drug_b, severity, description, source, is_active)
			VALUES (?, ?, ?, ?, ?, 1)
		`, f.DrugA, f.DrugB, string(f.Severity), f.Description, f.Source); err != nil {
			return fmt.Errorf("failed to insert interaction: %w", err)
		}
	}
	for _, f := range set.Contraindications {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO contraindications (drug_id, diagnosis_id, severity, reason, is_active)
			VALUES (?, ?, ?, ?, 1)
		`, f.DrugID, f.DiagnosisID, string(f.Severity), f.Reason); err != nil {
			return fmt.Errorf("failed to insert contraindication: %w", err)
		}
	}
	for _, kw := range set.ConditionKeywords {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO condition_keywords (keyword, concept_id, is_active)
			VALUES (?, ?, 1)
		`, kw.Keyword, kw.ConceptID); err != nil {
			return fmt.Errorf("failed to insert condition keyword: %w", err)
		}
	}
	for _, kw := range set.PairKeywords {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO pair_keywords (keyword, drug_id, is_active)
			VALUES (?, ?, 1)
		`, kw.Keyword, kw.DrugID); err != nil {
			return fmt.Errorf("failed to insert pair keyword: %w", err)
		}
	}
	for _, r := range rules {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO rules (rule_id, category, priority, severity, logic, is_active, version)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.RuleID, r.Category, r.Priority, string(r.Severity), string(r.Logic), r.IsActive, r.Version); err != nil {
			return fmt.Errorf("failed to insert rule %s: %w", r.RuleID, err)
		}
	}

	return tx.Commit()
}

// DemoKnowledgeSet returns a small curated content set for local runs and
// smoke tests.
func DemoKnowledgeSet() *domain.KnowledgeSet {
	return &domain.KnowledgeSet{
		Concepts: []domain.Concept{
			{ID: "D-SIL", DisplayName: "Sildenafil", Kind: domain.KindDrug, Active: true},
			{ID: "D-NIT", DisplayName: "Nitroglycerin", Kind: domain.KindDrug, Active: true},
			{ID: "D-MET", DisplayName: "Metformin", Kind: domain.KindDrug, Active: true},
			{ID: "D-ASP", DisplayName: "Aspirin", Kind: domain.KindDrug, Active: true},
			{ID: "D-WAR", DisplayName: "Warfarin", Kind: domain.KindDrug, Active: true},
			{ID: "I-ASA", DisplayName: "Acetylsalicylic acid", Kind: domain.KindDrug, Active: true},
			{ID: "C-CKD5", DisplayName: "Chronic kidney disease stage 5", Kind: domain.KindDiagnosis, Active: true},
			{ID: "C-T2D", DisplayName: "Type 2 diabetes", Kind: domain.KindDiagnosis, Active: true},
		},
		IngredientLinks: []domain.IngredientLink{
			{DrugID: "D-ASP", IngredientID: "I-ASA"},
		},
		Interactions: []domain.InteractionFact{
			{DrugA: "D-SIL", DrugB: "D-NIT", Severity: domain.SeverityHigh, Description: "Concurrent nitrate use causes severe hypotension", Source: "curated"},
			{DrugA: "I-ASA", DrugB: "D-WAR", Severity: domain.SeverityModerate, Description: "Additive bleeding risk", Source: "curated"},
		},
		Contraindications: []domain.ContraindicationFact{
			{DrugID: "D-MET", DiagnosisID: "C-CKD5", Severity: domain.SeverityHigh, Reason: "Metformin is contraindicated in end-stage renal disease"},
		},
		ConditionKeywords: []domain.ConditionKeyword{
			{Keyword: "diabetes", ConceptID: "C-T2D"},
			{Keyword: "kidney", ConceptID: "C-CKD5"},
			{Keyword: "renal", ConceptID: "C-CKD5"},
		},
		PairKeywords: []domain.PairKeyword{
			{Keyword: "nitroglycerin", DrugID: "D-NIT"},
			{Keyword: "nitrate", DrugID: "D-NIT"},
			{Keyword: "warfarin", DrugID: "D-WAR"},
		},
	}
}

// DemoRules returns the starter rule set matching the demo knowledge base.
func DemoRules() []domain.Rule {
	return []domain.Rule{
		{
			RuleID:   "R-HIGH-RISK",
			Category: "HIGH_RISK",
			Priority: 100,
			Severity: domain.SeverityModerate,
			Logic:    json.RawMessage(`{"if":{"cond":{"op":">","fact":"riskScore","value":80},"then":"FLAG_HIGH_RISK","else":"CONTINUE"}}`),
			IsActive: true,
			Version:  1,
		},
		{
			RuleID:   "R-ELDERLY-ANTICOAG",
			Category: "DOSING",
			Priority: 50,
			Severity: domain.SeverityModerate,
			Logic: json.RawMessage(`{"if":{"cond":{"op":"and","args":[` +
				`{"op":">=","fact":"age","value":75},` +
				`{"op":"==","fact":"anticoagulated","value":true}` +
				`]},"then":"REVIEW_ANTICOAG_DOSING","else":"CONTINUE"}}`),
			IsActive: true,
			Version:  1,
		},
		{
			RuleID:   "R-RENAL-EGFR",
			Category: "DOSING",
			Priority: 60,
			Severity: domain.SeverityHigh,
			Logic:    json.RawMessage(`{"if":{"cond":{"op":"<","fact":"egfr","value":15},"then":"FLAG_RENAL_FAILURE","else":"CONTINUE"}}`),
			IsActive: true,
			Version:  1,
		},
	}
}
