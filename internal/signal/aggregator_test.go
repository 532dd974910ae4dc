package signal

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/ruleengine"
)

func testAggregator(supervisorCategories ...string) *Aggregator {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewAggregator(supervisorCategories, logger)
}

func issue(id string, kind domain.IssueKind, severity domain.Severity) domain.ValidationIssue {
	return domain.ValidationIssue{ID: id, Kind: kind, Severity: severity, Message: "msg " + id}
}

func outcome(ruleID, category string, severity domain.Severity) ruleengine.Outcome {
	return ruleengine.Outcome{RuleID: ruleID, Category: category, Severity: severity, Tag: "TAG_" + ruleID}
}

func TestAggregateEmpty(t *testing.T) {
	sig := testAggregator().Aggregate(nil, nil)

	assert.Equal(t, domain.ColorGreen, sig.Color)
	assert.Empty(t, sig.Findings)
	assert.Equal(t, domain.OverrideNone, sig.OverridePolicy)
}

func TestAggregateColorLattice(t *testing.T) {
	tests := []struct {
		name     string
		issues   []domain.ValidationIssue
		outcomes []ruleengine.Outcome
		color    domain.SignalColor
	}{
		{
			"one red among yellows",
			[]domain.ValidationIssue{
				issue("I1", domain.IssueContraindication, domain.SeverityModerate),
				issue("I2", domain.IssueInteraction, domain.SeverityHigh),
			},
			[]ruleengine.Outcome{outcome("R1", "GENERAL", domain.SeverityModerate)},
			domain.ColorRed,
		},
		{
			"yellow without red",
			[]domain.ValidationIssue{issue("I1", domain.IssueContraindication, domain.SeverityModerate)},
			nil,
			domain.ColorYellow,
		},
		{
			"low severity stays green",
			[]domain.ValidationIssue{issue("I1", domain.IssueContraindication, domain.SeverityLow)},
			[]ruleengine.Outcome{outcome("R1", "GENERAL", domain.SeverityLow)},
			domain.ColorGreen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := testAggregator().Aggregate(tt.issues, tt.outcomes)
			assert.Equal(t, tt.color, sig.Color)
		})
	}
}

func TestAggregateOverridePolicy(t *testing.T) {
	tests := []struct {
		name     string
		issues   []domain.ValidationIssue
		outcomes []ruleengine.Outcome
		policy   domain.OverridePolicy
	}{
		{
			"high issue blocks",
			[]domain.ValidationIssue{issue("I1", domain.IssueInteraction, domain.SeverityHigh)},
			nil,
			domain.OverrideBlocked,
		},
		{
			"blocked dominates supervisor",
			[]domain.ValidationIssue{issue("I1", domain.IssueInteraction, domain.SeverityHigh)},
			[]ruleengine.Outcome{outcome("R1", "DOSING", domain.SeverityModerate)},
			domain.OverrideBlocked,
		},
		{
			"supervisor category",
			nil,
			[]ruleengine.Outcome{outcome("R1", "DOSING", domain.SeverityModerate)},
			domain.OverrideRequiresSupervisor,
		},
		{
			"moderate issue requires justification",
			[]domain.ValidationIssue{issue("I1", domain.IssueContraindication, domain.SeverityModerate)},
			nil,
			domain.OverrideRequiresJustification,
		},
		{
			"moderate outcome requires justification",
			nil,
			[]ruleengine.Outcome{outcome("R1", "GENERAL", domain.SeverityModerate)},
			domain.OverrideRequiresJustification,
		},
		{
			"low severity carries none",
			[]domain.ValidationIssue{issue("I1", domain.IssueContraindication, domain.SeverityLow)},
			[]ruleengine.Outcome{outcome("R1", "GENERAL", domain.SeverityLow)},
			domain.OverrideNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := testAggregator("DOSING").Aggregate(tt.issues, tt.outcomes)
			assert.Equal(t, tt.policy, sig.OverridePolicy)
		})
	}
}

func TestAggregateFindingOrder(t *testing.T) {
	issues := []domain.ValidationIssue{
		issue("I-LOW", domain.IssueContraindication, domain.SeverityLow),
		issue("I-HIGH", domain.IssueInteraction, domain.SeverityHigh),
		issue("I-MOD", domain.IssueContraindication, domain.SeverityModerate),
	}
	outcomes := []ruleengine.Outcome{
		outcome("R-FIRST", "GENERAL", domain.SeverityLow),
		outcome("R-SECOND", "GENERAL", domain.SeverityHigh),
	}

	sig := testAggregator().Aggregate(issues, outcomes)
	require.Len(t, sig.Findings, 5)

	assert.Equal(t, "I-HIGH", sig.Findings[0].SourceID, "blocking issues lead")
	assert.Equal(t, "I-MOD", sig.Findings[1].SourceID, "then issues by severity descending")
	assert.Equal(t, "I-LOW", sig.Findings[2].SourceID)
	assert.Equal(t, "R-FIRST", sig.Findings[3].SourceID, "rule outcomes keep engine order")
	assert.Equal(t, "R-SECOND", sig.Findings[4].SourceID)
}

func TestAggregateFindingContent(t *testing.T) {
	sig := testAggregator().Aggregate(
		[]domain.ValidationIssue{issue("I1", domain.IssueInteraction, domain.SeverityHigh)},
		[]ruleengine.Outcome{outcome("R1", "GENERAL", domain.SeverityModerate)},
	)
	require.Len(t, sig.Findings, 2)

	assert.Equal(t, "I1", sig.Findings[0].SourceID)
	assert.Equal(t, "msg I1", sig.Findings[0].Message)
	assert.Equal(t, "R1", sig.Findings[1].SourceID)
	assert.Equal(t, "TAG_R1", sig.Findings[1].Message)
}
