package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clinsafe-server/internal/domain"
)

// EvaluatePrescriptionParams defines parameters for the evaluate_prescription tool
type EvaluatePrescriptionParams struct {
	CapturedText string         `json:"captured_text,omitempty"`
	Medication   string         `json:"medication,omitempty"`
	Diagnosis    string         `json:"diagnosis,omitempty"`
	Facts        map[string]any `json:"facts,omitempty"`
}

// ValidateDiagnosisParams defines parameters for the validate_diagnosis tool
type ValidateDiagnosisParams struct {
	Text string `json:"text"`
}

// ValidatePrescriptionParams defines parameters for the validate_prescription tool
type ValidatePrescriptionParams struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// GetConceptParams defines parameters for the get_concept tool
type GetConceptParams struct {
	ConceptID string `json:"concept_id"`
}

func (s *Server) handleEvaluate(ctx context.Context, req *mcp.CallToolRequest, params EvaluatePrescriptionParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "evaluate_prescription").Info("Tool invoked")

	evalReq := &domain.EvaluateRequest{
		CapturedText: params.CapturedText,
		StructuredFields: map[string]string{
			domain.FieldMedication: params.Medication,
			domain.FieldDiagnosis:  params.Diagnosis,
		},
		FactContext: params.Facts,
	}

	sig, err := s.evaluator.Evaluate(ctx, evalReq)
	if err != nil {
		return s.createErrorResult("Evaluation failed", err), nil, nil
	}

	return s.createJSONResult(sig)
}

func (s *Server) handleValidateDiagnosis(ctx context.Context, req *mcp.CallToolRequest, params ValidateDiagnosisParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "validate_diagnosis").Info("Tool invoked")

	if params.Text == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("text is required")), nil, nil
	}

	result, err := s.evaluator.ValidateDiagnosis(ctx, params.Text)
	if err != nil {
		return s.createErrorResult("Validation failed", err), nil, nil
	}

	return s.createJSONResult(result)
}

func (s *Server) handleValidatePrescription(ctx context.Context, req *mcp.CallToolRequest, params ValidatePrescriptionParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "validate_prescription").Info("Tool invoked")

	if params.Text == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("text is required")), nil, nil
	}

	result, err := s.evaluator.ValidatePrescription(ctx, params.Text, params.Context)
	if err != nil {
		return s.createErrorResult("Validation failed", err), nil, nil
	}

	return s.createJSONResult(result)
}

func (s *Server) handleGetConcept(ctx context.Context, req *mcp.CallToolRequest, params GetConceptParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "get_concept").Info("Tool invoked")

	if params.ConceptID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("concept_id is required")), nil, nil
	}

	concept, err := s.evaluator.ConceptByID(ctx, params.ConceptID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.createErrorResult("Concept not found", err), nil, nil
		}
		return s.createErrorResult("Lookup failed", err), nil, nil
	}

	return s.createJSONResult(concept)
}

// createJSONResult serializes a result value as the tool's text content.
func (s *Server) createJSONResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return s.createErrorResult("Serialization failed", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(raw)},
		},
	}, nil, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	s.logger.WithError(err).Warn(message)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", message, err)},
		},
		IsError: true,
	}
}
