package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinsafe-server/internal/authoring"
	"github.com/clinsafe-server/internal/knowledge"
	"github.com/clinsafe-server/internal/ruleengine"
)

// Refresher reloads authored content on a bounded interval and publishes
// fresh snapshots atomically. A failed reload keeps the currently served
// snapshots untouched; repeated failures trip a circuit breaker so a down
// authoring store is not hammered every tick.
type Refresher struct {
	source    authoring.Source
	knowledge *knowledge.Container
	rules     *ruleengine.Provider
	scheduler *gocron.Scheduler
	breaker   *gobreaker.CircuitBreaker
	logger    *logrus.Logger
	interval  time.Duration
}

// NewRefresher creates a refresher around an authoring source.
func NewRefresher(source authoring.Source, kc *knowledge.Container, rp *ruleengine.Provider, interval time.Duration, logger *logrus.Logger) *Refresher {
	cbSettings := gobreaker.Settings{
		Name:     "authoring-refresh",
		Interval: interval * 4,
		Timeout:  interval * 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Refresher{
		source:    source,
		knowledge: kc,
		rules:     rp,
		scheduler: gocron.NewScheduler(time.UTC),
		breaker:   gobreaker.NewCircuitBreaker(cbSettings),
		logger:    logger,
		interval:  interval,
	}
}

// LoadOnce performs the initial load. Callers treat an error here as fatal:
// serving evaluations without safety data is not a supported mode.
func (r *Refresher) LoadOnce(ctx context.Context) error {
	return r.loadAndPublish(ctx)
}

// Start schedules periodic refreshes. LoadOnce must have succeeded first.
func (r *Refresher) Start() error {
	_, err := r.scheduler.Every(r.interval).Do(func() {
		if err := r.Refresh(context.Background()); err != nil {
			r.logger.WithError(err).Error("Scheduled refresh failed, keeping current snapshots")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	r.scheduler.StartAsync()
	r.logger.WithField("interval", r.interval.String()).Info("Snapshot refresh scheduled")
	return nil
}

// Stop stops the refresh schedule.
func (r *Refresher) Stop() {
	r.scheduler.Stop()
}

// Refresh reloads and republishes once. Concurrent refreshes are refused
// rather than queued.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.knowledge.BeginUpdate() {
		r.logger.Info("Refresh already in progress, skipping")
		return nil
	}
	defer r.knowledge.EndUpdate()

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.loadAndPublish(ctx)
	})
	return err
}

func (r *Refresher) loadAndPublish(ctx context.Context) error {
	start := time.Now()

	set, err := r.source.LoadKnowledge(ctx)
	if err != nil {
		return fmt.Errorf("loading knowledge: %w", err)
	}
	rules, err := r.source.LoadRules(ctx)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	snap, err := knowledge.BuildSnapshot(set)
	if err != nil {
		return fmt.Errorf("building knowledge snapshot: %w", err)
	}
	ruleSet := ruleengine.Compile(rules, r.logger)

	r.knowledge.Publish(snap)
	r.rules.Publish(ruleSet)

	r.logger.WithFields(logrus.Fields{
		"concepts":          snap.ConceptCount(),
		"active_rules":      len(ruleSet.Rules()),
		"skipped_rules":     len(ruleSet.Skipped()),
		"knowledge_version": snap.Version(),
		"rules_version":     ruleSet.Version(),
		"duration":          time.Since(start).String(),
	}).Info("Published fresh snapshots")

	return nil
}
