package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/api"
	"github.com/clinsafe-server/internal/audit"
	"github.com/clinsafe-server/internal/authoring"
	"github.com/clinsafe-server/internal/cache"
	"github.com/clinsafe-server/internal/config"
	"github.com/clinsafe-server/internal/database"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/logging"
	"github.com/clinsafe-server/internal/ruleengine"
	"github.com/clinsafe-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.New(cfg.Logging)

	// Open the authoring source the snapshots are loaded from
	source, err := openSource(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open authoring source")
	}
	defer source.Close()

	kc := knowledge.NewContainer()
	rp := ruleengine.NewProvider()

	// The initial load is fatal on failure: serving evaluations without
	// safety data is not a supported mode.
	refresher := service.NewRefresher(source, kc, rp, cfg.Authoring.RefreshInterval, logger)
	if err := refresher.LoadOnce(context.Background()); err != nil {
		logger.WithError(err).Fatal("Initial knowledge load failed")
	}
	if err := refresher.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start refresh schedule")
	}
	defer refresher.Stop()

	evaluator := service.NewEvaluator(kc, rp, cfg.Rules.SupervisorCategories, logger)

	decisionCache, err := cache.New(cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create decision cache")
	}
	defer decisionCache.Close()

	journal, err := openJournal(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open override journal")
	}
	if journal != nil {
		defer journal.Close()
	}

	server := api.NewServer(*cfg, evaluator, kc, decisionCache, journal, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// openSource opens the configured authoring store. Postgres gets its
// migrations applied first; SQLite is opened read-only and must already be
// seeded.
func openSource(configManager *config.Manager, logger *logrus.Logger) (authoring.Source, error) {
	cfg := configManager.GetConfig()

	switch cfg.Authoring.Driver {
	case "postgres":
		runner, err := database.NewMigrationRunner(database.ConnectionURL(cfg.Authoring.Postgres), cfg.Authoring.MigrationsPath, logger)
		if err != nil {
			return nil, err
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, err
		}
		runner.Close()

		db, err := database.NewConnection(context.Background(), cfg.Authoring.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return authoring.NewPostgresSource(db), nil
	default:
		return authoring.NewSQLiteSource(cfg.Authoring.SQLitePath)
	}
}

// openJournal opens the override journal, sharing the Postgres database when
// that is the configured driver. Returns nil when the journal is disabled.
func openJournal(configManager *config.Manager, logger *logrus.Logger) (audit.Store, error) {
	cfg := configManager.GetConfig()
	if !cfg.Audit.Enabled {
		return nil, nil
	}

	if cfg.Authoring.Driver == "postgres" {
		db, err := database.NewConnection(context.Background(), cfg.Authoring.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return audit.NewPostgresStore(db)
	}
	return audit.NewSQLiteStore(cfg.Audit.SQLitePath)
}
