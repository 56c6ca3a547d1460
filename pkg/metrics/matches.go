package metrics

import (
	"sync"
	"sync/atomic"
)

// MatchCounters tallies answered questions per match type.
type MatchCounters struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Int64
}

// NewMatchCounters returns an empty counter set.
func NewMatchCounters() *MatchCounters {
	return &MatchCounters{counts: make(map[string]*atomic.Int64)}
}

// Inc bumps the counter for key.
func (c *MatchCounters) Inc(key string) {
	c.mu.RLock()
	counter, ok := c.counts[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if counter, ok = c.counts[key]; !ok {
			counter = new(atomic.Int64)
			c.counts[key] = counter
		}
		c.mu.Unlock()
	}
	counter.Add(1)
}

// Snapshot copies the current counts.
func (c *MatchCounters) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.counts))
	for key, counter := range c.counts {
		out[key] = counter.Load()
	}
	return out
}

// IsZero reports whether nothing has been counted yet.
func (c *MatchCounters) IsZero() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.counts) == 0
}
