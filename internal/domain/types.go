// Package domain contains the core business entities for the clinical safety
// decision core: normalized drug and diagnosis concepts, safety facts,
// data-driven rules, and the color-graded decision signal returned to callers.
package domain

// Severity represents the severity tier of a safety finding.
// Tiers form a strict lattice: High > Moderate > Low.
type Severity string

const (
	SeverityHigh     Severity = "HIGH"
	SeverityModerate Severity = "MODERATE"
	SeverityLow      Severity = "LOW"
)

// SignalColor represents the aggregate color of a decision signal.
type SignalColor string

const (
	ColorGreen  SignalColor = "GREEN"
	ColorYellow SignalColor = "YELLOW"
	ColorRed    SignalColor = "RED"
)

// OverridePolicy represents whether and how a clinician may override a signal.
type OverridePolicy string

const (
	OverrideNone                  OverridePolicy = "NONE"
	OverrideRequiresJustification OverridePolicy = "REQUIRES_JUSTIFICATION"
	OverrideRequiresSupervisor    OverridePolicy = "REQUIRES_SUPERVISOR"
	OverrideBlocked               OverridePolicy = "BLOCKED"
)

// ConceptKind distinguishes the two concept variants sharing the lookup shape.
type ConceptKind string

const (
	KindDrug      ConceptKind = "DRUG"
	KindDiagnosis ConceptKind = "DIAGNOSIS"
)

// IssueKind represents the kind of a validation issue.
type IssueKind string

const (
	IssueInteraction      IssueKind = "INTERACTION"
	IssueContraindication IssueKind = "CONTRAINDICATION"
)

// IsValid validates the severity tier. Only valid tiers may participate in
// color aggregation; unknown tiers are treated as a configuration defect.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityHigh, SeverityModerate, SeverityLow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Rank returns the lattice position of the severity, higher is more severe.
// Unknown severities rank lowest so a defective record can never escalate
// a signal on its own.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityModerate:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Color maps a severity tier to the signal color it implies in isolation.
func (s Severity) Color() SignalColor {
	switch s {
	case SeverityHigh:
		return ColorRed
	case SeverityModerate:
		return ColorYellow
	default:
		return ColorGreen
	}
}

// IsValid validates the signal color.
func (c SignalColor) IsValid() bool {
	switch c {
	case ColorGreen, ColorYellow, ColorRed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the color.
func (c SignalColor) String() string {
	return string(c)
}

// Rank returns the lattice position of the color, higher dominates.
func (c SignalColor) Rank() int {
	switch c {
	case ColorRed:
		return 3
	case ColorYellow:
		return 2
	case ColorGreen:
		return 1
	default:
		return 0
	}
}

// Max returns the dominating color of the two. Red dominates Yellow
// dominates Green; this is a strict lattice, not a weighted score.
func (c SignalColor) Max(other SignalColor) SignalColor {
	if other.Rank() > c.Rank() {
		return other
	}
	return c
}

// IsValid validates the override policy.
func (p OverridePolicy) IsValid() bool {
	switch p {
	case OverrideNone, OverrideRequiresJustification, OverrideRequiresSupervisor, OverrideBlocked:
		return true
	default:
		return false
	}
}

// String returns the string representation of the override policy.
func (p OverridePolicy) String() string {
	return string(p)
}

// Rank returns the strictness of the policy, higher is stricter. Used when
// merging policies from multiple findings: the strictest one wins.
func (p OverridePolicy) Rank() int {
	switch p {
	case OverrideBlocked:
		return 4
	case OverrideRequiresSupervisor:
		return 3
	case OverrideRequiresJustification:
		return 2
	case OverrideNone:
		return 1
	default:
		return 0
	}
}

// IsValid validates the concept kind.
func (k ConceptKind) IsValid() bool {
	switch k {
	case KindDrug, KindDiagnosis:
		return true
	default:
		return false
	}
}

// IsValid validates the issue kind.
func (k IssueKind) IsValid() bool {
	switch k {
	case IssueInteraction, IssueContraindication:
		return true
	default:
		return false
	}
}
