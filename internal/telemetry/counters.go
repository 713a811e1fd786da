package telemetry

import (
	"sort"
	"sync"
)

// Counters is an in-memory Metrics implementation. Add accumulates, Store
// overwrites.
type Counters struct {
	mu     sync.RWMutex
	values map[string]uint64
}

// NewCounters constructs an empty counter set.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	if c.values == nil {
		c.values = make(map[string]uint64)
	}
	c.values[key] += delta
	c.mu.Unlock()
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	if c.values == nil {
		c.values = make(map[string]uint64)
	}
	c.values[key] = value
	c.mu.Unlock()
}

// Get returns the current value for key.
func (c *Counters) Get(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Keys returns the recorded keys in sorted order.
func (c *Counters) Keys() []string {
	snapshot := c.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
