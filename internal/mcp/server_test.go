package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsafe-server/internal/authoring"
	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/ruleengine"
	"github.com/clinsafe-server/internal/service"
)

func testMCPServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	snap, err := knowledge.BuildSnapshot(authoring.DemoKnowledgeSet())
	require.NoError(t, err)
	kc := knowledge.NewContainer()
	kc.Publish(snap)

	rp := ruleengine.NewProvider()
	rp.Publish(ruleengine.Compile(authoring.DemoRules(), logger))

	evaluator := service.NewEvaluator(kc, rp, []string{"DOSING"}, logger)
	return NewServer(evaluator, logger)
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestEvaluatePrescriptionTool(t *testing.T) {
	s := testMCPServer(t)

	result, _, err := s.handleEvaluate(context.Background(), nil, EvaluatePrescriptionParams{
		CapturedText: "patient takes nitroglycerin",
		Medication:   "Sildenafil",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var sig domain.DecisionSignal
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &sig))
	assert.Equal(t, domain.ColorRed, sig.Color)
	assert.Equal(t, domain.OverrideBlocked, sig.OverridePolicy)
}

func TestEvaluatePrescriptionToolWithFacts(t *testing.T) {
	s := testMCPServer(t)

	result, _, err := s.handleEvaluate(context.Background(), nil, EvaluatePrescriptionParams{
		Facts: map[string]any{"riskScore": 85},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var sig domain.DecisionSignal
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &sig))
	assert.Equal(t, domain.ColorYellow, sig.Color)
	require.Len(t, sig.Findings, 1)
	assert.Equal(t, "R-HIGH-RISK", sig.Findings[0].SourceID)
}

func TestValidateDiagnosisTool(t *testing.T) {
	s := testMCPServer(t)

	result, _, err := s.handleValidateDiagnosis(context.Background(), nil, ValidateDiagnosisParams{Text: "Type 2 diabetes"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var dr domain.DiagnosisResult
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &dr))
	assert.True(t, dr.IsValid)
	assert.Equal(t, 100, dr.Confidence)
}

func TestValidateDiagnosisToolMissingText(t *testing.T) {
	s := testMCPServer(t)

	result, _, err := s.handleValidateDiagnosis(context.Background(), nil, ValidateDiagnosisParams{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestValidatePrescriptionTool(t *testing.T) {
	s := testMCPServer(t)

	result, _, err := s.handleValidatePrescription(context.Background(), nil, ValidatePrescriptionParams{
		Text:    "Metformin",
		Context: "chronic kidney disease stage 5",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var pr domain.PrescriptionResult
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &pr))
	assert.False(t, pr.IsValid)
	assert.NotEmpty(t, pr.Issues)
}

func TestGetConceptTool(t *testing.T) {
	s := testMCPServer(t)

	result, _, err := s.handleGetConcept(context.Background(), nil, GetConceptParams{ConceptID: "D-MET"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var concept domain.Concept
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &concept))
	assert.Equal(t, "Metformin", concept.DisplayName)

	result, _, err = s.handleGetConcept(context.Background(), nil, GetConceptParams{ConceptID: "D-NOPE"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
