// Package mcp exposes the decision core to MCP clients over stdio. Stdout
// belongs to the transport, so all logging goes through the injected logger,
// which callers must point at stderr or a file.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/service"
)

// Server represents the MCP server implementation.
type Server struct {
	evaluator *service.Evaluator
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance around the evaluation service.
func NewServer(evaluator *service.Evaluator, logger *logrus.Logger) *Server {
	serverInfo := &mcp.Implementation{
		Name:    "clinsafe-mcp-server",
		Version: "v1.0.0",
	}

	s := &Server{
		evaluator: evaluator,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Start runs the MCP server over stdio until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio transport")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "evaluate_prescription",
		Description: "Run a full safety evaluation of a captured prescription and return a color-graded decision signal",
	}, s.handleEvaluate)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_diagnosis",
		Description: "Validate a captured diagnosis field against the clinical vocabulary",
	}, s.handleValidateDiagnosis)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_prescription",
		Description: "Validate a captured prescription against the drug vocabulary and safety facts",
	}, s.handleValidatePrescription)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_concept",
		Description: "Look up a clinical concept by its stable code",
	}, s.handleGetConcept)

	s.logger.WithField("tool_count", 4).Info("Registered MCP tools")
}
