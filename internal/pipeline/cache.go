package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// EvaluationCache holds the latest published assessment. Publication is a
// compare-and-swap that only ever moves forward in time.
type EvaluationCache struct {
	current atomic.Pointer[Assessment]
	ttl     time.Duration
	clock   clockwork.Clock
}

// NewEvaluationCache creates a cache whose entries are fresh for ttl after
// they were produced.
func NewEvaluationCache(ttl time.Duration, clock clockwork.Clock) *EvaluationCache {
	return &EvaluationCache{ttl: ttl, clock: clock}
}

// Publish makes a current unless the cache already holds the same or a newer
// assessment. It reports whether a was published.
func (c *EvaluationCache) Publish(a *Assessment) bool {
	if a == nil {
		return false
	}
	for {
		cur := c.current.Load()
		if !a.newer(cur) {
			return false
		}
		if c.current.CompareAndSwap(cur, a) {
			return true
		}
	}
}

// Current returns the latest assessment, fresh or not, or nil.
func (c *EvaluationCache) Current() *Assessment {
	return c.current.Load()
}

// Fresh returns the latest assessment if it was produced less than the TTL ago.
func (c *EvaluationCache) Fresh() (*Assessment, bool) {
	a := c.current.Load()
	if a == nil || c.clock.Since(a.ProducedAt) >= c.ttl {
		return a, false
	}
	return a, true
}

// TTL is how long an assessment stays fresh.
func (c *EvaluationCache) TTL() time.Duration { return c.ttl }
