// Package cache holds advisory availability caches. Entries are dropped on
// every ledger change for their resource and date; admission never reads them.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/facility-booking/internal/availability"
)

// Memory is a bounded TTL cache local to one process.
//
// Versions come from one counter. invalidated records the counter value of the
// last Invalidate per key; once that map is pruned, floor rejects any version
// read before the prune.
type Memory struct {
	mu          sync.RWMutex
	now         func() time.Time
	ttl         time.Duration
	maxEntries  int
	entries     map[string]memoryEntry
	seq         uint64
	floor       uint64
	invalidated map[string]uint64
}

type memoryEntry struct {
	busy      []availability.Busy
	expiresAt time.Time
}

// NewMemory returns a cache holding at most maxEntries for ttl each.
func NewMemory(ttl time.Duration, maxEntries int, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),

		invalidated: make(map[string]uint64),
	}
}

func (c *Memory) Get(_ context.Context, resourceID, date string) ([]availability.Busy, bool, error) {
	key := Key(resourceID, date)
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return cloneBusy(entry.busy), true, nil
}

// Version returns the token Set compares against.
func (c *Memory) Version(_ context.Context, _, _ string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq, nil
}

// Set stores busy unless the key was invalidated after version was read.
func (c *Memory) Set(_ context.Context, resourceID, date string, version uint64, busy []availability.Busy) error {
	key := Key(resourceID, date)
	entry := memoryEntry{busy: cloneBusy(busy), expiresAt: c.now().Add(c.ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if version < c.floor || c.invalidated[key] > version {
		return nil
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = entry
	return nil
}

func (c *Memory) Invalidate(_ context.Context, resourceID, date string) error {
	key := Key(resourceID, date)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if len(c.invalidated) >= c.maxEntries {
		c.invalidated = make(map[string]uint64)
		c.floor = c.seq
	}
	c.invalidated[key] = c.seq
	delete(c.entries, key)
	return nil
}

func (c *Memory) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *Memory) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func (c *Memory) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key is the cache key of one resource's date.
func Key(resourceID, date string) string {
	return "availability:" + resourceID + ":" + date
}

func cloneBusy(busy []availability.Busy) []availability.Busy {
	if len(busy) == 0 {
		return []availability.Busy{}
	}
	out := make([]availability.Busy, len(busy))
	copy(out, busy)
	return out
}
