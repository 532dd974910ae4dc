package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsafe-server/internal/audit"
	"github.com/clinsafe-server/internal/authoring"
	"github.com/clinsafe-server/internal/cache"
	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/ruleengine"
	"github.com/clinsafe-server/internal/service"
)

func testConfig() domain.Config {
	return domain.Config{
		Server: domain.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		},
		Rules:   domain.RulesConfig{SupervisorCategories: []string{"DOSING"}},
		Cache:   domain.CacheConfig{Enabled: true, LocalSize: 64, TTL: time.Minute},
		Logging: domain.LoggingConfig{Level: "warn", Format: "json", Output: "stderr"},
	}
}

func testServer(t *testing.T, loaded bool) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	cfg := testConfig()

	kc := knowledge.NewContainer()
	rp := ruleengine.NewProvider()
	if loaded {
		snap, err := knowledge.BuildSnapshot(authoring.DemoKnowledgeSet())
		require.NoError(t, err)
		kc.Publish(snap)
		rp.Publish(ruleengine.Compile(authoring.DemoRules(), logger))
	}

	evaluator := service.NewEvaluator(kc, rp, cfg.Rules.SupervisorCategories, logger)
	dc, err := cache.New(cfg.Cache, logger)
	require.NoError(t, err)

	journal, err := audit.NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	return NewServer(cfg, evaluator, kc, dc, journal, logger)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestEvaluateEndpointBlocked(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", domain.EvaluateRequest{
		CapturedText:     "patient takes nitroglycerin daily",
		StructuredFields: map[string]string{domain.FieldMedication: "Sildenafil"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var sig domain.DecisionSignal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sig))
	assert.Equal(t, domain.ColorRed, sig.Color)
	assert.Equal(t, domain.OverrideBlocked, sig.OverridePolicy)
	assert.NotEmpty(t, sig.Findings)
}

func TestEvaluateEndpointMemoizes(t *testing.T) {
	s := testServer(t, true)
	body := domain.EvaluateRequest{
		StructuredFields: map[string]string{domain.FieldMedication: "Aspirin"},
	}

	first := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", body)
	require.Equal(t, http.StatusOK, first.Code)
	second := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", body)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int64(1), s.cache.Stats().LocalHits)
}

func TestEvaluateEndpointCacheFollowsSnapshotVersions(t *testing.T) {
	s := testServer(t, true)
	body := domain.EvaluateRequest{
		StructuredFields: map[string]string{domain.FieldMedication: "Aspirin"},
	}

	first := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", body)
	require.Equal(t, http.StatusOK, first.Code)

	// A refreshed knowledge base must not serve the entry memoized under
	// the previous version pair.
	changed := authoring.DemoKnowledgeSet()
	changed.Interactions[0].Severity = domain.SeverityLow
	snap, err := knowledge.BuildSnapshot(changed)
	require.NoError(t, err)
	s.knowledge.Publish(snap)

	second := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, int64(0), s.cache.Stats().LocalHits)

	// The fresh result is filed under the new pair and reused from there.
	third := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", body)
	require.Equal(t, http.StatusOK, third.Code)
	assert.Equal(t, int64(1), s.cache.Stats().LocalHits)
}

func TestEvaluateEndpointMalformedBody(t *testing.T) {
	s := testServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateEndpointUnavailable(t *testing.T) {
	s := testServer(t, false)

	w := doJSON(t, s, http.MethodPost, "/api/v1/evaluate", domain.EvaluateRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestValidateDiagnosisEndpoint(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/validate/diagnosis", validateRequest{Text: "Type 2 diabetes"})
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.DiagnosisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.IsValid)
	assert.Equal(t, 100, result.Confidence)

	// Missing text field fails binding.
	w = doJSON(t, s, http.MethodPost, "/api/v1/validate/diagnosis", map[string]string{"context": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidatePrescriptionEndpoint(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/validate/prescription", validateRequest{
		Text:    "Metformin",
		Context: "chronic kidney disease stage 5",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.PrescriptionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Issues)
}

func TestGetConceptEndpoint(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodGet, "/api/v1/drugs/D-MET", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var concept domain.Concept
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &concept))
	assert.Equal(t, "Metformin", concept.DisplayName)

	w = doJSON(t, s, http.MethodGet, "/api/v1/drugs/D-NOPE", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.NotEmpty(t, health["knowledge_version"])

	w = doJSON(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthUnloaded(t *testing.T) {
	s := testServer(t, false)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRecordOverrideEndpoint(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/overrides", audit.OverrideRecord{
		CorrelationID:  "corr-1",
		SignalColor:    domain.ColorYellow,
		OverridePolicy: domain.OverrideRequiresJustification,
		Decision:       audit.DecisionOverridden,
		Justification:  "Dose reviewed against labs",
		FindingCount:   1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	list := doJSON(t, s, http.MethodGet, "/api/v1/overrides", nil)
	require.Equal(t, http.StatusOK, list.Code)

	var page struct {
		Records []audit.OverrideRecord `json:"records"`
		Total   int64                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "corr-1", page.Records[0].CorrelationID)
}

func TestRecordOverrideBlockedRejected(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/overrides", audit.OverrideRecord{
		CorrelationID:  "corr-2",
		SignalColor:    domain.ColorRed,
		OverridePolicy: domain.OverrideBlocked,
		Decision:       audit.DecisionOverridden,
		Justification:  "any",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCorrelationIDHeader(t *testing.T) {
	s := testServer(t, true)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "fixed-id")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Correlation-ID"))
}
