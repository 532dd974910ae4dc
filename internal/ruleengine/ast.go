// Package ruleengine compiles and evaluates externally authored decision
// rules. Rule logic is data: a JSON expression tree of comparisons and
// boolean combinators selecting an outcome tag. Evaluation is pure, reads
// only the fact context, and is deterministic for identical inputs.
package ruleengine

import (
	"encoding/json"
	"fmt"
)

// ContinueTag is the no-op outcome: the rule evaluated but contributes
// nothing to the decision.
const ContinueTag = "CONTINUE"

// node is either a branch or a leaf tag.
type node struct {
	branch *branchNode
	tag    string
}

type branchNode struct {
	cond     condition
	thenNode node
	elseNode node
}

type condition interface {
	eval(facts map[string]any) bool
}

type ruleDocument struct {
	If *ifClause `json:"if"`
}

type ifClause struct {
	Cond json.RawMessage `json:"cond"`
	Then json.RawMessage `json:"then"`
	Else json.RawMessage `json:"else"`
}

type condClause struct {
	Op    string            `json:"op"`
	Fact  string            `json:"fact"`
	Value json.RawMessage   `json:"value"`
	Args  []json.RawMessage `json:"args"`
}

// parseLogic parses a rule's logic document into an evaluable tree.
// Any structural defect is an error; the caller decides what skipping a
// defective rule means.
func parseLogic(logic json.RawMessage) (node, error) {
	var doc ruleDocument
	if err := json.Unmarshal(logic, &doc); err != nil {
		return node{}, fmt.Errorf("invalid logic document: %w", err)
	}
	if doc.If == nil {
		return node{}, fmt.Errorf("logic document missing if clause")
	}
	return parseIf(doc.If)
}

func parseIf(clause *ifClause) (node, error) {
	if len(clause.Cond) == 0 {
		return node{}, fmt.Errorf("if clause missing cond")
	}
	cond, err := parseCond(clause.Cond)
	if err != nil {
		return node{}, err
	}
	thenNode, err := parseBranch(clause.Then, "then")
	if err != nil {
		return node{}, err
	}
	elseNode, err := parseBranch(clause.Else, "else")
	if err != nil {
		return node{}, err
	}
	return node{branch: &branchNode{cond: cond, thenNode: thenNode, elseNode: elseNode}}, nil
}

// parseBranch accepts either a leaf tag string or a nested if document.
// A missing else defaults to CONTINUE.
func parseBranch(raw json.RawMessage, name string) (node, error) {
	if len(raw) == 0 {
		return node{tag: ContinueTag}, nil
	}

	var tag string
	if err := json.Unmarshal(raw, &tag); err == nil {
		if tag == "" {
			return node{}, fmt.Errorf("%s branch has empty tag", name)
		}
		return node{tag: tag}, nil
	}

	var nested ruleDocument
	if err := json.Unmarshal(raw, &nested); err != nil {
		return node{}, fmt.Errorf("%s branch is neither tag nor nested if: %w", name, err)
	}
	if nested.If == nil {
		return node{}, fmt.Errorf("%s branch object missing if clause", name)
	}
	return parseIf(nested.If)
}

func parseCond(raw json.RawMessage) (condition, error) {
	var clause condClause
	if err := json.Unmarshal(raw, &clause); err != nil {
		return nil, fmt.Errorf("invalid condition: %w", err)
	}

	switch clause.Op {
	case "and", "or":
		if len(clause.Args) == 0 {
			return nil, fmt.Errorf("%s condition requires args", clause.Op)
		}
		args := make([]condition, 0, len(clause.Args))
		for _, rawArg := range clause.Args {
			arg, err := parseCond(rawArg)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return &logicalCond{op: clause.Op, args: args}, nil

	case ">", "<", ">=", "<=", "==", "in":
		if clause.Fact == "" {
			return nil, fmt.Errorf("%s condition requires fact", clause.Op)
		}
		if len(clause.Value) == 0 {
			return nil, fmt.Errorf("%s condition requires value", clause.Op)
		}
		var value any
		if err := json.Unmarshal(clause.Value, &value); err != nil {
			return nil, fmt.Errorf("%s condition value: %w", clause.Op, err)
		}
		if clause.Op == "in" {
			if _, ok := value.([]any); !ok {
				return nil, fmt.Errorf("in condition value must be an array")
			}
		}
		return &compareCond{op: clause.Op, fact: clause.Fact, value: value}, nil

	default:
		return nil, fmt.Errorf("unknown condition op %q", clause.Op)
	}
}

type logicalCond struct {
	op   string
	args []condition
}

func (c *logicalCond) eval(facts map[string]any) bool {
	if c.op == "and" {
		for _, arg := range c.args {
			if !arg.eval(facts) {
				return false
			}
		}
		return true
	}
	for _, arg := range c.args {
		if arg.eval(facts) {
			return true
		}
	}
	return false
}

type compareCond struct {
	op    string
	fact  string
	value any
}

// eval treats a missing fact as false for every operator: absent data never
// satisfies a condition.
func (c *compareCond) eval(facts map[string]any) bool {
	fact, ok := facts[c.fact]
	if !ok || fact == nil {
		return false
	}

	switch c.op {
	case "==":
		return looseEqual(fact, c.value)
	case "in":
		members, ok := c.value.([]any)
		if !ok {
			return false
		}
		for _, m := range members {
			if looseEqual(fact, m) {
				return true
			}
		}
		return false
	default:
		fv, ok1 := asFloat(fact)
		vv, ok2 := asFloat(c.value)
		if !ok1 || !ok2 {
			return false
		}
		switch c.op {
		case ">":
			return fv > vv
		case "<":
			return fv < vv
		case ">=":
			return fv >= vv
		case "<=":
			return fv <= vv
		}
		return false
	}
}

// looseEqual compares across the numeric types JSON decoding and Go callers
// produce, and falls back to strict equality for strings and bools.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
