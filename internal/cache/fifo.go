// Package cache provides a fixed-capacity map that evicts its oldest entry.
package cache

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FIFO is a concurrency-safe, insertion-ordered map bounded to a fixed
// capacity. Inserting a new key into a full cache evicts the oldest key in the
// same call. Updating an existing key keeps its position.
type FIFO[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[K, V]
	onEvict  func(K, V)
}

// NewFIFO returns an empty cache. Capacity below 1 is treated as 1.
func NewFIFO[K comparable, V any](capacity int) *FIFO[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO[K, V]{
		capacity: capacity,
		entries:  orderedmap.New[K, V](),
	}
}

// OnEvict registers a callback run (under the cache lock) for every evicted entry.
func (c *FIFO[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Put stores value under key and reports whether an entry was evicted.
func (c *FIFO[K, V]) Put(key K, value V) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, present := c.entries.Get(key); present {
		c.entries.Set(key, value)
		return false
	}
	if c.entries.Len() >= c.capacity {
		if oldest := c.entries.Oldest(); oldest != nil {
			c.entries.Delete(oldest.Key)
			if c.onEvict != nil {
				c.onEvict(oldest.Key, oldest.Value)
			}
			evicted = true
		}
	}
	c.entries.Set(key, value)
	return evicted
}

func (c *FIFO[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

func (c *FIFO[K, V]) Contains(key K) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *FIFO[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries.Delete(key)
	return ok
}

func (c *FIFO[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *FIFO[K, V]) Capacity() int { return c.capacity }

// Clear drops every entry without running the eviction callback.
func (c *FIFO[K, V]) Clear() {
	c.mu.Lock()
	c.entries = orderedmap.New[K, V]()
	c.mu.Unlock()
}

// Values returns the values oldest first.
func (c *FIFO[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]V, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// NewestValues returns up to limit values, newest first. limit <= 0 means all.
func (c *FIFO[K, V]) NewestValues(limit int) []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.entries.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]V, 0, n)
	for pair := c.entries.Newest(); pair != nil && len(out) < n; pair = pair.Prev() {
		out = append(out, pair.Value)
	}
	return out
}
