package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinsafe-server/internal/authoring"
	"github.com/clinsafe-server/internal/domain"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/ruleengine"
)

// stubSource serves canned content and can be flipped into a failing state.
type stubSource struct {
	set   *domain.KnowledgeSet
	rules []domain.Rule
	fail  bool
}

func (s *stubSource) LoadKnowledge(ctx context.Context) (*domain.KnowledgeSet, error) {
	if s.fail {
		return nil, errors.New("authoring store down")
	}
	return s.set, nil
}

func (s *stubSource) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	if s.fail {
		return nil, errors.New("authoring store down")
	}
	return s.rules, nil
}

func (s *stubSource) Close() error { return nil }

func TestLoadOncePublishesSnapshots(t *testing.T) {
	source := &stubSource{set: authoring.DemoKnowledgeSet(), rules: authoring.DemoRules()}
	kc := knowledge.NewContainer()
	rp := ruleengine.NewProvider()
	r := NewRefresher(source, kc, rp, time.Minute, testLogger())

	require.NoError(t, r.LoadOnce(context.Background()))

	snap, ok := kc.Current()
	require.True(t, ok)
	assert.NotEmpty(t, snap.Version())

	rs, ok := rp.Current()
	require.True(t, ok)
	assert.Len(t, rs.Rules(), 3)
}

func TestLoadOnceFailsOnUnavailableSource(t *testing.T) {
	source := &stubSource{fail: true}
	r := NewRefresher(source, knowledge.NewContainer(), ruleengine.NewProvider(), time.Minute, testLogger())

	assert.Error(t, r.LoadOnce(context.Background()))
}

func TestFailedRefreshKeepsCurrentSnapshots(t *testing.T) {
	source := &stubSource{set: authoring.DemoKnowledgeSet(), rules: authoring.DemoRules()}
	kc := knowledge.NewContainer()
	rp := ruleengine.NewProvider()
	r := NewRefresher(source, kc, rp, time.Minute, testLogger())

	require.NoError(t, r.LoadOnce(context.Background()))
	before, _ := kc.Current()

	source.fail = true
	assert.Error(t, r.Refresh(context.Background()))

	after, ok := kc.Current()
	require.True(t, ok)
	assert.Equal(t, before.Version(), after.Version(), "failed refresh must not disturb the served snapshot")
}

func TestRefreshPublishesChangedContent(t *testing.T) {
	source := &stubSource{set: authoring.DemoKnowledgeSet(), rules: authoring.DemoRules()}
	kc := knowledge.NewContainer()
	rp := ruleengine.NewProvider()
	r := NewRefresher(source, kc, rp, time.Minute, testLogger())

	require.NoError(t, r.LoadOnce(context.Background()))
	before, _ := kc.Current()

	changed := authoring.DemoKnowledgeSet()
	changed.Concepts = append(changed.Concepts, domain.Concept{
		ID: "D-NEW", DisplayName: "Lisinopril", Kind: domain.KindDrug, Active: true,
	})
	source.set = changed

	require.NoError(t, r.Refresh(context.Background()))

	after, _ := kc.Current()
	assert.NotEqual(t, before.Version(), after.Version())
	_, found := after.ResolveDrug("Lisinopril")
	assert.True(t, found)
}

func TestRefreshRefusedWhileUpdating(t *testing.T) {
	source := &stubSource{set: authoring.DemoKnowledgeSet(), rules: authoring.DemoRules()}
	kc := knowledge.NewContainer()
	r := NewRefresher(source, kc, ruleengine.NewProvider(), time.Minute, testLogger())

	require.True(t, kc.BeginUpdate())
	defer kc.EndUpdate()

	// Guard held elsewhere: refresh is a no-op, not an error.
	assert.NoError(t, r.Refresh(context.Background()))
	_, ok := kc.Current()
	assert.False(t, ok)
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	source := &stubSource{fail: true}
	r := NewRefresher(source, knowledge.NewContainer(), ruleengine.NewProvider(), time.Minute, testLogger())

	for i := 0; i < 3; i++ {
		assert.Error(t, r.Refresh(context.Background()))
	}

	// Breaker is open now; the source is no longer even consulted.
	source.fail = false
	assert.Error(t, r.Refresh(context.Background()))
}
