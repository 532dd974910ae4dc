package ruleengine

import (
	"sync/atomic"
)

// Provider publishes the current compiled rule set with atomic swaps, the
// same zero-downtime discipline the knowledge container uses. An evaluation
// holds one rule set for its whole duration.
type Provider struct {
	current atomic.Pointer[RuleSet]
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Current returns the published rule set.
func (p *Provider) Current() (*RuleSet, bool) {
	rs := p.current.Load()
	return rs, rs != nil
}

// Publish atomically swaps in a freshly compiled rule set.
func (p *Provider) Publish(rs *RuleSet) {
	p.current.Store(rs)
}
