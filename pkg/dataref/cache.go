package dataref

import (
	"sync"
	"time"
)

// Entry is the latest known value for one subscribed dataref.
// Value and Timestamp are meaningless until Seen is true.
type Entry struct {
	Name      string
	Value     float32
	Timestamp time.Time
	Seen      bool
}

// Cache holds the most recent value per subscribed dataref name.
// Entries are seeded at subscribe time so readers never observe a missing
// key, and they survive unsubscription and receive-loop termination
// (stale-but-available).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Seed creates an unset entry for name if none exists. Called at subscribe
// time, before the request is sent.
func (c *Cache) Seed(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[name]; !exists {
		c.entries[name] = Entry{Name: name}
	}
}

// Update stores a new value for name. Timestamps never move backwards
// within one cache lifetime.
func (c *Cache) Update(name string, value float32, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[name]
	if entry.Seen && at.Before(entry.Timestamp) {
		at = entry.Timestamp
	}
	c.entries[name] = Entry{Name: name, Value: value, Timestamp: at, Seen: true}
}

// Get returns the entry for name. The second result is false when the name
// was never seeded.
func (c *Cache) Get(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.entries[name]
	return entry, exists
}

// Snapshot returns a copy of all entries.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := make(map[string]Entry, len(c.entries))
	for name, entry := range c.entries {
		snap[name] = entry
	}
	return snap
}
