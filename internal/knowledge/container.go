package knowledge

import (
	"sync/atomic"
	"time"
)

// Container publishes the current snapshot with atomic swaps for
// zero-downtime refreshes. Readers keep whatever snapshot they loaded for
// the duration of one evaluation; a concurrent swap never affects them.
type Container struct {
	current     atomic.Pointer[Snapshot]
	lastUpdated atomic.Pointer[time.Time]
	updating    atomic.Bool
}

// NewContainer creates an empty container. Current returns false until the
// first Publish.
func NewContainer() *Container {
	return &Container{}
}

// Current returns the published snapshot.
func (c *Container) Current() (*Snapshot, bool) {
	s := c.current.Load()
	return s, s != nil
}

// Publish atomically swaps in a freshly built snapshot.
func (c *Container) Publish(s *Snapshot) {
	now := time.Now()
	c.current.Store(s)
	c.lastUpdated.Store(&now)
}

// LastUpdated returns the time of the most recent publish.
func (c *Container) LastUpdated() time.Time {
	if t := c.lastUpdated.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// IsUpdating returns true while a refresh is in flight.
func (c *Container) IsUpdating() bool {
	return c.updating.Load()
}

// BeginUpdate marks the start of a refresh.
// Returns false if another refresh is already in progress.
func (c *Container) BeginUpdate() bool {
	return c.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a refresh.
func (c *Container) EndUpdate() {
	c.updating.Store(false)
}
