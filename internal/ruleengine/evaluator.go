package ruleengine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/domain"
)

// CompiledRule pairs an authored rule with its parsed logic tree.
type CompiledRule struct {
	Rule domain.Rule
	root node
}

// Outcome records one fired rule. Outcomes preserve engine order: higher
// priority first, then rule id.
type Outcome struct {
	RuleID   string          `json:"rule_id"`
	Category string          `json:"category"`
	Priority int             `json:"priority"`
	Severity domain.Severity `json:"severity"`
	Tag      string          `json:"tag"`
}

// RuleSet is an immutable, compiled, ordered set of active rules.
type RuleSet struct {
	rules   []CompiledRule
	skipped []domain.RuleDefect
	version string
}

// Compile validates, parses and orders the active rules. A malformed rule
// is skipped and logged as a content defect; it never aborts compilation.
func Compile(rules []domain.Rule, logger *logrus.Logger) *RuleSet {
	rs := &RuleSet{}

	for i := range rules {
		rule := rules[i]
		if !rule.IsActive {
			continue
		}
		if err := rule.Validate(); err != nil {
			rs.skip(logger, rule.RuleID, err)
			continue
		}
		root, err := parseLogic(rule.Logic)
		if err != nil {
			rs.skip(logger, rule.RuleID, err)
			continue
		}
		rs.rules = append(rs.rules, CompiledRule{Rule: rule, root: root})
	}

	// Evaluation order is part of the contract: priority descending,
	// rule id ascending as the tiebreak.
	sort.Slice(rs.rules, func(i, j int) bool {
		a, b := rs.rules[i].Rule, rs.rules[j].Rule
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.RuleID < b.RuleID
	})

	rs.version = rs.fingerprint()

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"active_rules":  len(rs.rules),
			"skipped_rules": len(rs.skipped),
			"version":       rs.version,
		}).Info("Compiled rule set")
	}

	return rs
}

func (rs *RuleSet) skip(logger *logrus.Logger, ruleID string, err error) {
	defect := domain.RuleDefect{RuleID: ruleID, Reason: err.Error()}
	rs.skipped = append(rs.skipped, defect)
	if logger != nil {
		logger.WithError(err).WithField("rule_id", ruleID).Warn("Skipping malformed rule")
	}
}

// Evaluate runs every rule against the fact context and returns the fired
// outcomes in engine order. One rule selecting CONTINUE, or matching
// nothing, never affects its neighbors.
func (rs *RuleSet) Evaluate(facts domain.FactContext) []Outcome {
	outcomes := make([]Outcome, 0)
	for i := range rs.rules {
		cr := &rs.rules[i]
		tag := walk(cr.root, facts)
		if tag == ContinueTag {
			continue
		}
		outcomes = append(outcomes, Outcome{
			RuleID:   cr.Rule.RuleID,
			Category: cr.Rule.Category,
			Priority: cr.Rule.Priority,
			Severity: cr.Rule.Severity,
			Tag:      tag,
		})
	}
	return outcomes
}

func walk(n node, facts domain.FactContext) string {
	for n.branch != nil {
		if n.branch.cond.eval(facts) {
			n = n.branch.thenNode
		} else {
			n = n.branch.elseNode
		}
	}
	return n.tag
}

// Rules returns the compiled rules in evaluation order.
func (rs *RuleSet) Rules() []CompiledRule {
	return rs.rules
}

// Skipped returns the defects recorded during compilation.
func (rs *RuleSet) Skipped() []domain.RuleDefect {
	return rs.skipped
}

// Version returns the content fingerprint of the compiled set.
func (rs *RuleSet) Version() string {
	return rs.version
}

func (rs *RuleSet) fingerprint() string {
	h := sha256.New()
	for i := range rs.rules {
		r := rs.rules[i].Rule
		fmt.Fprintf(h, "r|%s|%d|%d|%s|%s|%s\n", r.RuleID, r.Version, r.Priority, r.Category, r.Severity, string(r.Logic))
	}
	return hex.EncodeToString(h.Sum(nil))
}
