// Package signal merges validation issues and rule outcomes into one
// decision signal.
package signal

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/ruleengine"
)

// Aggregator folds validator issues and rule outcomes into exactly one
// decision signal per evaluation. Color follows a strict lattice, never a
// weighted score: one red-tier finding makes the whole signal red.
type Aggregator struct {
	logger               *logrus.Logger
	supervisorCategories map[string]bool
}

// NewAggregator creates an aggregator. supervisorCategories names the rule
// categories whose fired outcomes demand supervisory sign-off to override.
func NewAggregator(supervisorCategories []string, logger *logrus.Logger) *Aggregator {
	set := make(map[string]bool, len(supervisorCategories))
	for _, c := range supervisorCategories {
		set[c] = true
	}
	return &Aggregator{logger: logger, supervisorCategories: set}
}

// Aggregate produces the decision signal.
//
// Finding order is part of the contract: blocking issues first, then the
// remaining issues by severity descending, then rule outcomes in engine
// order. Callers get a stable, severity-first presentation every time.
func (a *Aggregator) Aggregate(issues []domain.ValidationIssue, outcomes []ruleengine.Outcome) *domain.DecisionSignal {
	color := domain.ColorGreen
	policy := domain.OverrideNone

	var blocking, remaining []domain.ValidationIssue
	for _, issue := range issues {
		color = color.Max(issue.Severity.Color())
		if issue.Severity == domain.SeverityHigh {
			// High-severity curated facts are non-overridable.
			blocking = append(blocking, issue)
			policy = strictest(policy, domain.OverrideBlocked)
		} else {
			remaining = append(remaining, issue)
			if issue.Severity.Color() != domain.ColorGreen {
				policy = strictest(policy, domain.OverrideRequiresJustification)
			}
		}
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Severity.Rank() > remaining[j].Severity.Rank()
	})

	for _, outcome := range outcomes {
		color = color.Max(outcome.Severity.Color())
		if a.supervisorCategories[outcome.Category] {
			policy = strictest(policy, domain.OverrideRequiresSupervisor)
		} else if outcome.Severity.Color() != domain.ColorGreen {
			policy = strictest(policy, domain.OverrideRequiresJustification)
		}
	}

	findings := make([]domain.Finding, 0, len(issues)+len(outcomes))
	for _, issue := range blocking {
		findings = append(findings, issueFinding(issue))
	}
	for _, issue := range remaining {
		findings = append(findings, issueFinding(issue))
	}
	for _, outcome := range outcomes {
		findings = append(findings, domain.Finding{
			SourceID: outcome.RuleID,
			Severity: outcome.Severity,
			Message:  outcome.Tag,
		})
	}

	signal := &domain.DecisionSignal{
		Color:          color,
		Findings:       findings,
		OverridePolicy: policy,
	}

	a.logger.WithFields(signal.LogFields()).Debug("Aggregated decision signal")
	return signal
}

func issueFinding(issue domain.ValidationIssue) domain.Finding {
	return domain.Finding{
		SourceID: issue.ID,
		Severity: issue.Severity,
		Message:  issue.Message,
	}
}

func strictest(a, b domain.OverridePolicy) domain.OverridePolicy {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
