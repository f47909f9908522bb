package accesslog

import (
	"sync"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// entryCache is a ring of the most recent entries.
type entryCache struct {
	mu      sync.RWMutex
	entries []http1.AccessEntry
	size    int
	head    int
	count   int
}

func newEntryCache(size int) *entryCache {
	if size <= 0 {
		size = 1000
	}
	return &entryCache{
		entries: make([]http1.AccessEntry, size),
		size:    size,
	}
}

// Add stores e, overwriting the oldest entry when full.
func (c *entryCache) Add(e http1.AccessEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.head] = e
	c.head = (c.head + 1) % c.size
	if c.count < c.size {
		c.count++
	}
}

// Recent returns the last n entries, newest first.
func (c *entryCache) Recent(n int) []http1.AccessEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || c.count == 0 {
		return nil
	}
	if n > c.count {
		n = c.count
	}

	out := make([]http1.AccessEntry, n)
	for i := 0; i < n; i++ {
		// head is the next write slot
		out[i] = c.entries[(c.head-1-i+c.size)%c.size]
	}
	return out
}

func (c *entryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}
