package domain

import (
	"testing"
)

func TestSeverityConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    Severity
		expected string
	}{
		{"High", SeverityHigh, "HIGH"},
		{"Moderate", SeverityModerate, "MODERATE"},
		{"Low", SeverityLow, "LOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.value)
			}
		})
	}

	if Severity("CRITICAL").IsValid() {
		t.Error("Expected unknown severity to be invalid")
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	if SeverityHigh.Rank() <= SeverityModerate.Rank() {
		t.Error("Expected High to outrank Moderate")
	}
	if SeverityModerate.Rank() <= SeverityLow.Rank() {
		t.Error("Expected Moderate to outrank Low")
	}
	if Severity("bogus").Rank() != 0 {
		t.Error("Expected unknown severity to rank lowest")
	}
}

func TestSeverityColorMapping(t *testing.T) {
	tests := []struct {
		severity Severity
		color    SignalColor
	}{
		{SeverityHigh, ColorRed},
		{SeverityModerate, ColorYellow},
		{SeverityLow, ColorGreen},
	}

	for _, tt := range tests {
		if got := tt.severity.Color(); got != tt.color {
			t.Errorf("Severity %s: expected color %s, got %s", tt.severity, tt.color, got)
		}
	}
}

func TestSignalColorLattice(t *testing.T) {
	tests := []struct {
		name     string
		a, b     SignalColor
		expected SignalColor
	}{
		{"Red dominates Yellow", ColorRed, ColorYellow, ColorRed},
		{"Red dominates Green", ColorGreen, ColorRed, ColorRed},
		{"Yellow dominates Green", ColorYellow, ColorGreen, ColorYellow},
		{"Green is identity", ColorGreen, ColorGreen, ColorGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Max(tt.b); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestOverridePolicyRank(t *testing.T) {
	ordered := []OverridePolicy{OverrideNone, OverrideRequiresJustification, OverrideRequiresSupervisor, OverrideBlocked}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Errorf("Expected %s to be stricter than %s", ordered[i], ordered[i-1])
		}
	}
}

func TestConceptValidate(t *testing.T) {
	tests := []struct {
		name    string
		concept Concept
		wantErr bool
	}{
		{"valid drug", Concept{ID: "D001", DisplayName: "Aspirin", Kind: KindDrug, Active: true}, false},
		{"valid diagnosis", Concept{ID: "C001", DisplayName: "Type 2 diabetes", Kind: KindDiagnosis, Active: true}, false},
		{"missing id", Concept{DisplayName: "Aspirin", Kind: KindDrug}, true},
		{"missing name", Concept{ID: "D001", Kind: KindDrug}, true},
		{"bad kind", Concept{ID: "D001", DisplayName: "Aspirin", Kind: "PROCEDURE"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.concept.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	logic := []byte(`{"if":{"cond":{"op":">","fact":"riskScore","value":80},"then":"FLAG_HIGH_RISK","else":"CONTINUE"}}`)

	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid", Rule{RuleID: "R001", Severity: SeverityModerate, Logic: logic, IsActive: true, Version: 1}, false},
		{"missing id", Rule{Severity: SeverityModerate, Logic: logic}, true},
		{"bad severity", Rule{RuleID: "R001", Severity: "EXTREME", Logic: logic}, true},
		{"missing logic", Rule{RuleID: "R001", Severity: SeverityLow}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluateRequestFieldAccessors(t *testing.T) {
	req := EvaluateRequest{
		CapturedText: "patient on nitroglycerin",
		StructuredFields: map[string]string{
			FieldMedication: "  Sildenafil ",
			FieldDiagnosis:  "Type 2 diabetes",
		},
	}

	if got := req.MedicationText(); got != "Sildenafil" {
		t.Errorf("Expected trimmed medication text, got %q", got)
	}
	if got := req.DiagnosisText(); got != "Type 2 diabetes" {
		t.Errorf("Unexpected diagnosis text %q", got)
	}
	if got := req.ContextText(); got != "patient on nitroglycerin" {
		t.Errorf("Unexpected context text %q", got)
	}
}
