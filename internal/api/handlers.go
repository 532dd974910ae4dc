package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinsafe-server/internal/audit"
	"github.com/clinsafe-server/internal/cache"
	"github.com/clinsafe-server/internal/domain"
)

type validateRequest struct {
	Text    string `json:"text" binding:"required"`
	Context string `json:"context"`
}

func (s *Server) handleHealth(c *gin.Context) {
	kver, rver := s.evaluator.Versions()

	status := "healthy"
	code := http.StatusOK
	if !s.evaluator.Ready() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":            status,
		"timestamp":         time.Now().UTC(),
		"knowledge_version": kver,
		"rules_version":     rver,
		"last_updated":      s.knowledge.LastUpdated(),
		"updating":          s.knowledge.IsUpdating(),
		"cache":             s.cache.Stats(),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.evaluator.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// handleEvaluate runs one full evaluation. Responses are memoized per
// snapshot pair; a refresh changes the versions and so the keys.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req domain.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	kver, rver := s.evaluator.Versions()
	if sig, ok := s.cache.Get(c.Request.Context(), cache.Key(kver, rver, &req)); ok {
		c.JSON(http.StatusOK, sig)
		return
	}

	// Store under the versions the evaluation was pinned to: a refresh
	// landing after the probe above must not file the result under the
	// old pair.
	sig, kver, rver, err := s.evaluator.EvaluateVersioned(c.Request.Context(), &req)
	if err != nil {
		s.serviceError(c, err)
		return
	}

	s.cache.Put(c.Request.Context(), cache.Key(kver, rver, &req), sig)
	c.JSON(http.StatusOK, sig)
}

func (s *Server) handleValidateDiagnosis(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.evaluator.ValidateDiagnosis(c.Request.Context(), req.Text)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleValidatePrescription(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.evaluator.ValidatePrescription(c.Request.Context(), req.Text, req.Context)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetConcept(c *gin.Context) {
	concept, err := s.evaluator.ConceptByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":          "Concept not found",
				"correlation_id": c.GetString("correlation_id"),
			})
			return
		}
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, concept)
}

// handleRecordOverride journals what the clinician did with a signal. The
// record's own Validate enforces the policy the signal carried.
func (s *Server) handleRecordOverride(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":          "Override journal disabled",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	var record audit.OverrideRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := record.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":          err.Error(),
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	if err := s.audit.Save(c.Request.Context(), &record); err != nil {
		s.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListOverrides(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":          "Override journal disabled",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	records, err := s.audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.serviceError(c, err)
		return
	}
	total, err := s.audit.Count(c.Request.Context())
	if err != nil {
		s.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":          "Invalid request body",
		"detail":         err.Error(),
		"correlation_id": c.GetString("correlation_id"),
	})
}

func (s *Server) serviceError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrKnowledgeUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":          "Safety knowledge not loaded",
			"correlation_id": c.GetString("correlation_id"),
		})
		return
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString("correlation_id"),
		"path":           c.FullPath(),
	}).WithError(err).Error("Request failed")

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":          "Internal server error",
		"correlation_id": c.GetString("correlation_id"),
	})
}
