package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Concept is a normalized clinical entity, either a drug or a diagnosis.
// The ID is the stable external code and is immutable once published;
// inactive concepts are excluded from name matching but remain resolvable
// by ID for historical lookups.
type Concept struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Kind        ConceptKind `json:"kind"`
	Active      bool        `json:"active"`
}

// Validate ensures the concept meets the invariants required before it may
// enter a knowledge snapshot.
func (c *Concept) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("concept validation: %w", errors.New("id is required"))
	}
	if c.DisplayName == "" {
		return fmt.Errorf("concept validation: %w", errors.New("display name is required"))
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("concept validation: %w", ErrInvalidConceptKind)
	}
	return nil
}

// IngredientLink relates a finished-product drug concept to one of its
// active-ingredient concepts. Derived data, immutable at runtime.
type IngredientLink struct {
	DrugID       string `json:"drug_id"`
	IngredientID string `json:"ingredient_id"`
}

// InteractionFact states that two drugs together carry an elevated risk.
// The pair is unordered: lookup must succeed regardless of which id is
// queried first.
type InteractionFact struct {
	DrugA       string   `json:"drug_a"`
	DrugB       string   `json:"drug_b"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
}

// ContraindicationFact states that a drug is unsafe or risky given a
// specific diagnosis. Directional: the drug is contraindicated given the
// diagnosis, not vice versa.
type ContraindicationFact struct {
	DrugID      string   `json:"drug_id"`
	DiagnosisID string   `json:"diagnosis_id"`
	Severity    Severity `json:"severity"`
	Reason      string   `json:"reason"`
}

// ConditionKeyword maps a free-text keyword to a diagnosis concept.
// The mapping is authored content, not code: extending condition coverage
// is a data change.
type ConditionKeyword struct {
	Keyword   string `json:"keyword"`
	ConceptID string `json:"concept_id"`
}

// PairKeyword maps a free-text keyword to the drug concept it stands for,
// used for the fail-closed dangerous-pair check: when the keyword occurs in
// the surrounding context, an interaction against the prescribed drug is
// always checked, regardless of identification confidence.
type PairKeyword struct {
	Keyword string `json:"keyword"`
	DrugID  string `json:"drug_id"`
}

// Rule is an externally authored, versioned decision rule. Logic holds the
// JSON-encoded expression tree evaluated against a fact context; disabling
// a rule is a content change, never a code change.
type Rule struct {
	RuleID   string          `json:"rule_id"`
	Category string          `json:"category"`
	Priority int             `json:"priority"`
	Severity Severity        `json:"severity"`
	Logic    json.RawMessage `json:"logic"`
	IsActive bool            `json:"is_active"`
	Version  int             `json:"version"`
}

// Validate ensures the rule record is structurally sound. A rule failing
// validation is a configuration defect: it is skipped, never fatal.
func (r *Rule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("rule validation: %w", errors.New("rule id is required"))
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("rule validation: %w", ErrInvalidSeverity)
	}
	if len(r.Logic) == 0 {
		return fmt.Errorf("rule validation: %w", errors.New("logic is required"))
	}
	return nil
}

// FactContext is the flat set of named inputs rules read via named lookups.
// Built once per evaluation from caller-supplied structured data and never
// mutated mid-evaluation.
type FactContext map[string]any

// KnowledgeSet is the raw authored content a knowledge snapshot is built
// from. Loaded from the authoring source; read-only afterwards.
type KnowledgeSet struct {
	Concepts          []Concept
	IngredientLinks   []IngredientLink
	Interactions      []InteractionFact
	Contraindications []ContraindicationFact
	ConditionKeywords []ConditionKeyword
	PairKeywords      []PairKeyword
}

// ValidationIssue is a single safety issue raised by the validator.
// Immutable once produced; consumed only by the aggregator.
type ValidationIssue struct {
	ID                 string    `json:"id"`
	Kind               IssueKind `json:"kind"`
	Severity           Severity  `json:"severity"`
	Message            string    `json:"message"`
	EvidenceConceptIDs []string  `json:"evidence_concept_ids"`
}

// DiagnosisResult is the outcome of validating a captured diagnosis field.
// Confidence is intentionally binary: 100 when the text resolved to a
// known concept, 0 otherwise. No partial credit, to avoid false reassurance.
type DiagnosisResult struct {
	IsValid    bool     `json:"is_valid"`
	Confidence int      `json:"confidence"`
	Concept    *Concept `json:"concept,omitempty"`
}

// PrescriptionResult is the outcome of validating a captured prescription.
// Confidence reflects identification confidence only, never safety
// confidence: a resolved drug with issues still reports confidence 100.
type PrescriptionResult struct {
	IsValid    bool              `json:"is_valid"`
	Confidence int               `json:"confidence"`
	Concept    *Concept          `json:"concept,omitempty"`
	Issues     []ValidationIssue `json:"issues"`
}

// Finding is one entry of a decision signal, sourced either from a
// validation issue or from a fired rule.
type Finding struct {
	SourceID string   `json:"source_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// DecisionSignal is the single color-graded, overridable output of one
// evaluation. Created fresh per call and never persisted by this core.
type DecisionSignal struct {
	Color          SignalColor    `json:"color"`
	Findings       []Finding      `json:"findings"`
	OverridePolicy OverridePolicy `json:"override_policy"`
}

// LogFields returns structured logging fields for audit trails.
func (s *DecisionSignal) LogFields() map[string]any {
	return map[string]any{
		"color":           s.Color.String(),
		"finding_count":   len(s.Findings),
		"override_policy": s.OverridePolicy.String(),
	}
}

// EvaluateRequest is the caller-to-core request shape. CapturedText and
// StructuredFields come from the text-capture collaborator; FactContext
// carries the scores, labs and flags consumed by rules.
type EvaluateRequest struct {
	CapturedText     string            `json:"captured_text,omitempty"`
	StructuredFields map[string]string `json:"structured_fields"`
	FactContext      FactContext       `json:"fact_context"`
}

// Well-known structured field names supplied by the capture collaborator.
const (
	FieldMedication = "medicationField"
	FieldDiagnosis  = "diagnosisField"
)

// MedicationText returns the captured medication field, trimmed.
func (r *EvaluateRequest) MedicationText() string {
	return strings.TrimSpace(r.StructuredFields[FieldMedication])
}

// DiagnosisText returns the captured diagnosis field, trimmed.
func (r *EvaluateRequest) DiagnosisText() string {
	return strings.TrimSpace(r.StructuredFields[FieldDiagnosis])
}

// ContextText returns the free text surrounding the prescription, used for
// contextual condition inference.
func (r *EvaluateRequest) ContextText() string {
	return r.CapturedText
}
