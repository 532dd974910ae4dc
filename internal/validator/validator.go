// Package validator turns raw captured fields into structured safety
// issues by resolving them against a knowledge snapshot.
package validator

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/knowledge"
)

// Validator resolves captured text against a knowledge store and emits
// validation issues. It holds no snapshot itself: the caller passes the
// store per call so one evaluation sees exactly one snapshot throughout.
type Validator struct {
	logger *logrus.Logger
}

// NewValidator creates a new validator.
func NewValidator(logger *logrus.Logger) *Validator {
	return &Validator{logger: logger}
}

// ValidateDiagnosis resolves captured diagnosis text. Confidence is binary:
// 100 on an exact concept match, 0 otherwise.
func (v *Validator) ValidateDiagnosis(store domain.KnowledgeStore, text string) *domain.DiagnosisResult {
	concept, ok := store.ResolveDiagnosis(text)
	if !ok {
		return &domain.DiagnosisResult{IsValid: false, Confidence: 0}
	}
	return &domain.DiagnosisResult{IsValid: true, Confidence: 100, Concept: concept}
}

// ValidatePrescription resolves captured medication text, infers contextual
// conditions from the surrounding text and emits contraindication and
// interaction issues. Callers that already hold resolved diagnosis ids (a
// validated diagnosis field) pass them as knownConditionIDs; they are checked
// alongside the inferred ones.
//
// Identification is fail-open: an unknown drug yields a neutral low
// confidence result, never a block. Dangerous-pair detection is fail-closed:
// a pair keyword in the context always triggers the interaction check, and
// when the drug could not even be identified the interaction cannot be
// ruled out, which is itself a high-severity issue.
func (v *Validator) ValidatePrescription(store domain.KnowledgeStore, drugText, contextText string, knownConditionIDs ...string) *domain.PrescriptionResult {
	drug, resolved := store.ResolveDrug(drugText)

	issues := make([]domain.ValidationIssue, 0)

	if resolved {
		conditionIDs := v.InferConditions(store, contextText)
		seen := make(map[string]bool, len(conditionIDs))
		for _, id := range conditionIDs {
			seen[id] = true
		}
		for _, id := range knownConditionIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			conditionIDs = append(conditionIDs, id)
		}

		for _, diagnosisID := range conditionIDs {
			fact, ok := findContraindication(store, drug.ID, diagnosisID)
			if !ok {
				continue
			}
			issues = append(issues, domain.ValidationIssue{
				ID:                 fmt.Sprintf("CIND-%s-%s", fact.DrugID, fact.DiagnosisID),
				Kind:               domain.IssueContraindication,
				Severity:           fact.Severity,
				Message:            fact.Reason,
				EvidenceConceptIDs: []string{fact.DrugID, fact.DiagnosisID},
			})
		}
	}

	issues = append(issues, v.pairIssues(store, drug, contextText)...)

	confidence := 0
	if resolved {
		confidence = 100
	} else {
		v.logger.WithField("drug_text", drugText).Debug("Unresolved drug text, neutral result")
	}

	return &domain.PrescriptionResult{
		IsValid:    len(issues) == 0,
		Confidence: confidence,
		Concept:    drug,
		Issues:     issues,
	}
}

// InferConditions maps contextual keywords to diagnosis concept ids. The
// keyword table is authored data; matching is a bounded substring scan over
// the folded context, deliberately short of entity extraction. Results are
// deduplicated and returned in table order.
func (v *Validator) InferConditions(store domain.KnowledgeStore, contextText string) []string {
	folded := knowledge.Fold(contextText)
	if folded == "" {
		return nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, kw := range store.ConditionKeywords() {
		if !strings.Contains(folded, kw.Keyword) || seen[kw.ConceptID] {
			continue
		}
		seen[kw.ConceptID] = true
		ids = append(ids, kw.ConceptID)
	}
	return ids
}

// pairIssues runs the fail-closed dangerous-pair check. Each pair keyword in
// the context names a second drug; with an identified primary drug a curated
// interaction fact is looked up, without one a high-severity issue is raised
// because the interaction cannot be ruled out.
func (v *Validator) pairIssues(store domain.KnowledgeStore, drug *domain.Concept, contextText string) []domain.ValidationIssue {
	folded := knowledge.Fold(contextText)
	if folded == "" {
		return nil
	}

	var issues []domain.ValidationIssue
	seen := make(map[string]bool)
	for _, kw := range store.PairKeywords() {
		if !strings.Contains(folded, kw.Keyword) || seen[kw.DrugID] {
			continue
		}
		seen[kw.DrugID] = true

		if drug == nil {
			pair, _ := store.ConceptByID(kw.DrugID)
			name := kw.DrugID
			if pair != nil {
				name = pair.DisplayName
			}
			issues = append(issues, domain.ValidationIssue{
				ID:                 fmt.Sprintf("INT-UNRESOLVED-%s", kw.DrugID),
				Kind:               domain.IssueInteraction,
				Severity:           domain.SeverityHigh,
				Message:            fmt.Sprintf("Interaction with %s could not be ruled out: prescribed drug was not identified", name),
				EvidenceConceptIDs: []string{kw.DrugID},
			})
			continue
		}

		if drug.ID == kw.DrugID {
			continue
		}
		fact, ok := findInteraction(store, drug.ID, kw.DrugID)
		if !ok {
			continue
		}
		issues = append(issues, domain.ValidationIssue{
			ID:                 fmt.Sprintf("INT-%s-%s", fact.DrugA, fact.DrugB),
			Kind:               domain.IssueInteraction,
			Severity:           fact.Severity,
			Message:            fact.Description,
			EvidenceConceptIDs: []string{fact.DrugA, fact.DrugB},
		})
	}
	return issues
}

// findContraindication checks the finished product first, then each of its
// active ingredients. A fact curated at the ingredient level applies to
// every product carrying that ingredient.
func findContraindication(store domain.KnowledgeStore, drugID, diagnosisID string) (*domain.ContraindicationFact, bool) {
	if fact, ok := store.FindContraindication(drugID, diagnosisID); ok {
		return fact, true
	}
	for _, ingredientID := range store.Ingredients(drugID) {
		if fact, ok := store.FindContraindication(ingredientID, diagnosisID); ok {
			return fact, true
		}
	}
	return nil, false
}

// findInteraction checks every combination of the two drugs and their active
// ingredients, product-level pair first. Products sharing an ingredient never
// yield a self-pair.
func findInteraction(store domain.KnowledgeStore, drugID, pairID string) (*domain.InteractionFact, bool) {
	left := append([]string{drugID}, store.Ingredients(drugID)...)
	right := append([]string{pairID}, store.Ingredients(pairID)...)
	for _, a := range left {
		for _, b := range right {
			if a == b {
				continue
			}
			if fact, ok := store.FindInteraction(a, b); ok {
				return fact, true
			}
		}
	}
	return nil, false
}
