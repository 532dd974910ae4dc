// Package service wires the decision core together: snapshot access,
// validation, rule evaluation and aggregation behind one entry point.
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/ruleengine"
	"github.com/clinsafe-server/internal/signal"
	"github.com/clinsafe-server/internal/validator"
)

// Evaluator executes one safety evaluation per call. Each call pins the
// knowledge snapshot and rule set it loaded first, so a concurrent refresh
// is never observed partially; given fixed snapshots the whole evaluation
// is a pure function of its input.
type Evaluator struct {
	logger     *logrus.Logger
	knowledge  *knowledge.Container
	rules      *ruleengine.Provider
	validator  *validator.Validator
	aggregator *signal.Aggregator
}

// NewEvaluator creates the evaluation service.
func NewEvaluator(kc *knowledge.Container, rp *ruleengine.Provider, supervisorCategories []string, logger *logrus.Logger) *Evaluator {
	return &Evaluator{
		logger:     logger,
		knowledge:  kc,
		rules:      rp,
		validator:  validator.NewValidator(logger),
		aggregator: signal.NewAggregator(supervisorCategories, logger),
	}
}

// Evaluate produces one decision signal for the request. Missing request
// fields are not errors: they simply derive no findings. The only error is
// an unpublished knowledge or rule snapshot, which means the process should
// not be serving at all.
func (e *Evaluator) Evaluate(ctx context.Context, req *domain.EvaluateRequest) (*domain.DecisionSignal, error) {
	sig, _, _, err := e.EvaluateVersioned(ctx, req)
	return sig, err
}

// EvaluateVersioned evaluates and additionally reports the snapshot
// fingerprints the call was pinned to. Callers memoizing results per
// snapshot pair must key on these, not on versions read separately: a
// refresh between the two reads would file the result under a stale pair.
func (e *Evaluator) EvaluateVersioned(ctx context.Context, req *domain.EvaluateRequest) (*domain.DecisionSignal, string, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", "", err
	}

	snap, ok := e.knowledge.Current()
	if !ok {
		return nil, "", "", domain.ErrKnowledgeUnavailable
	}
	ruleSet, ok := e.rules.Current()
	if !ok {
		return nil, "", "", domain.ErrKnowledgeUnavailable
	}

	// A resolved diagnosis field joins the contextual conditions for
	// contraindication checks; unresolved text derives nothing.
	var knownConditions []string
	if diagText := req.DiagnosisText(); diagText != "" {
		if diag := e.validator.ValidateDiagnosis(snap, diagText); diag.IsValid {
			knownConditions = append(knownConditions, diag.Concept.ID)
		}
	}

	var issues []domain.ValidationIssue
	if drugText := req.MedicationText(); drugText != "" {
		result := e.validator.ValidatePrescription(snap, drugText, req.ContextText(), knownConditions...)
		issues = result.Issues
	}

	outcomes := ruleSet.Evaluate(req.FactContext)
	sig := e.aggregator.Aggregate(issues, outcomes)

	e.logger.WithFields(logrus.Fields{
		"color":             sig.Color.String(),
		"finding_count":     len(sig.Findings),
		"override_policy":   sig.OverridePolicy.String(),
		"knowledge_version": snap.Version(),
		"rules_version":     ruleSet.Version(),
	}).Info("Evaluation completed")

	return sig, snap.Version(), ruleSet.Version(), nil
}

// ValidateDiagnosis validates a single captured diagnosis field against the
// current snapshot.
func (e *Evaluator) ValidateDiagnosis(ctx context.Context, text string) (*domain.DiagnosisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := e.knowledge.Current()
	if !ok {
		return nil, domain.ErrKnowledgeUnavailable
	}
	return e.validator.ValidateDiagnosis(snap, text), nil
}

// ValidatePrescription validates a single captured prescription against the
// current snapshot.
func (e *Evaluator) ValidatePrescription(ctx context.Context, drugText, contextText string) (*domain.PrescriptionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := e.knowledge.Current()
	if !ok {
		return nil, domain.ErrKnowledgeUnavailable
	}
	return e.validator.ValidatePrescription(snap, drugText, contextText), nil
}

// ConceptByID resolves a stable concept code against the current snapshot.
func (e *Evaluator) ConceptByID(ctx context.Context, id string) (*domain.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := e.knowledge.Current()
	if !ok {
		return nil, domain.ErrKnowledgeUnavailable
	}
	c, found := snap.ConceptByID(id)
	if !found {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

// Versions reports the currently published snapshot fingerprints, empty
// until the first load. Health reporting and cache probes use these;
// memoizing callers key stored results on the versions EvaluateVersioned
// returns.
func (e *Evaluator) Versions() (knowledgeVersion, rulesVersion string) {
	if snap, ok := e.knowledge.Current(); ok {
		knowledgeVersion = snap.Version()
	}
	if rs, ok := e.rules.Current(); ok {
		rulesVersion = rs.Version()
	}
	return knowledgeVersion, rulesVersion
}

// Ready reports whether both snapshots are published.
func (e *Evaluator) Ready() bool {
	_, kOK := e.knowledge.Current()
	_, rOK := e.rules.Current()
	return kOK && rOK
}
