// Package api exposes the decision core over HTTP. This surface is a thin
// adapter: all semantics live in the service layer.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/audit"
	"github.com/clinsafe-server/internal/cache"
	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/middleware"
	"github.com/clinsafe-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	cfg       domain.ServerConfig
	logger    *logrus.Logger
	evaluator *service.Evaluator
	knowledge *knowledge.Container
	cache     *cache.DecisionCache
	audit     audit.Store
	router    *gin.Engine
	server    *http.Server
}

// NewServer creates a new HTTP server instance. The audit store may be nil
// when the override journal is disabled.
func NewServer(cfg domain.Config, evaluator *service.Evaluator, kc *knowledge.Container, dc *cache.DecisionCache, journal audit.Store, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst).Middleware())

	s := &Server{
		cfg:       cfg.Server,
		logger:    logger,
		evaluator: evaluator,
		knowledge: kc,
		cache:     dc,
		audit:     journal,
		router:    router,
	}
	s.setupRoutes()
	return s
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ready", s.handleReady)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.POST("/validate/diagnosis", s.handleValidateDiagnosis)
		v1.POST("/validate/prescription", s.handleValidatePrescription)
		v1.GET("/drugs/:id", s.handleGetConcept)
		v1.POST("/overrides", s.handleRecordOverride)
		v1.GET("/overrides", s.handleListOverrides)
	}
}
