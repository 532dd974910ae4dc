package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the core.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidSeverity      = errors.New("invalid severity tier")
	ErrInvalidColor         = errors.New("invalid signal color")
	ErrInvalidConceptKind   = errors.New("invalid concept kind")
	ErrInvalidOverride      = errors.New("invalid override policy")
	ErrKnowledgeUnavailable = errors.New("knowledge snapshot unavailable")
)

// RuleDefect describes a malformed rule encountered while compiling the
// active rule set. It is a configuration-data defect, not a runtime fault:
// the offending rule is skipped and logged, never fatal.
type RuleDefect struct {
	RuleID string
	Reason string
}

// Error implements the error interface.
func (d *RuleDefect) Error() string {
	return fmt.Sprintf("rule %s: %s", d.RuleID, d.Reason)
}
