package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until the token would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenylist keeps revocations in process memory.
type MemoryDenylist struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[string]time.Time
}

// NewMemoryDenylist constructs an empty in-process denylist.
func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{now: now, entries: make(map[string]time.Time)}
}

// Revoke implements Denylist.
func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	now := d.now()
	if !until.After(now) {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanupLocked(now)
	d.entries[tokenID] = until
	return nil
}

// IsRevoked implements Denylist.
func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.RLock()
	until, ok := d.entries[tokenID]
	d.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !d.now().Before(until) {
		d.mu.Lock()
		delete(d.entries, tokenID)
		d.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (d *MemoryDenylist) cleanupLocked(now time.Time) {
	for id, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, id)
		}
	}
}

// RedisDenylist shares revocations across instances; keys expire with the token.
type RedisDenylist struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisDenylist constructs a Redis-backed denylist.
func NewRedisDenylist(client redis.UniversalClient, prefix string, now func() time.Time) *RedisDenylist {
	if prefix == "" {
		prefix = "session:revoked:"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisDenylist{client: client, prefix: prefix, now: now}
}

// Revoke implements Denylist.
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.prefix+tokenID, "1", ttl).Err()
}

// IsRevoked implements Denylist.
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
