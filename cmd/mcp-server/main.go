package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinsafe-server/internal/authoring"
	"github.com/clinsafe-server/internal/config"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/logging"
	"github.com/clinsafe-server/internal/mcp"
	"github.com/clinsafe-server/internal/ruleengine"
	"github.com/clinsafe-server/internal/service"
	"github.com/clinsafe-server/internal/setup"
)

func main() {
	// "mcp-server setup ..." runs the installer instead of serving.
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI().Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	// Stdout carries the MCP transport; force logs elsewhere.
	logCfg := cfg.Logging
	if logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger := logging.New(logCfg)

	// The MCP binary always reads the embedded SQLite store; Postgres
	// deployments run the HTTP server instead.
	source, err := authoring.NewSQLiteSource(cfg.Authoring.SQLitePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open authoring source")
	}
	defer source.Close()

	kc := knowledge.NewContainer()
	rp := ruleengine.NewProvider()

	refresher := service.NewRefresher(source, kc, rp, cfg.Authoring.RefreshInterval, logger)
	if err := refresher.LoadOnce(context.Background()); err != nil {
		logger.WithError(err).Fatal("Initial knowledge load failed")
	}
	if err := refresher.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start refresh schedule")
	}
	defer refresher.Stop()

	evaluator := service.NewEvaluator(kc, rp, cfg.Rules.SupervisorCategories, logger)
	mcpServer := mcp.NewServer(evaluator, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	if err := mcpServer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}

	logger.Info("MCP server stopped")
}
