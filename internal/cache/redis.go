package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/facility-booking/internal/availability"
)

// Redis shares cached availability between replicas as JSON values with a TTL.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis returns a cache storing entries under prefix for ttl.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

type busyEntry struct {
	BookingID string    `json:"booking_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func (c *Redis) key(resourceID, date string) string {
	return c.prefix + Key(resourceID, date)
}

func (c *Redis) Get(ctx context.Context, resourceID, date string) ([]availability.Busy, bool, error) {
	data, err := c.client.Get(ctx, c.key(resourceID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	var entries []busyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("cache: decode: %w", err)
	}
	busy := make([]availability.Busy, 0, len(entries))
	for _, e := range entries {
		busy = append(busy, availability.Busy{
			BookingID: e.BookingID,
			Interval:  availability.Interval{Start: e.Start, End: e.End},
		})
	}
	return busy, true, nil
}

// setIfCurrent writes the entry only while the version key still holds the
// version the reader saw. A missing version key reads as "0".
var setIfCurrent = redis.NewScript(`
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

func (c *Redis) versionKey(resourceID, date string) string {
	return c.prefix + "version:" + Key(resourceID, date)
}

// Version returns the invalidation counter of the key, zero if never invalidated.
func (c *Redis) Version(ctx context.Context, resourceID, date string) (uint64, error) {
	v, err := c.client.Get(ctx, c.versionKey(resourceID, date)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache: version: %w", err)
	}
	return v, nil
}

// Set stores busy unless the key was invalidated after version was read.
func (c *Redis) Set(ctx context.Context, resourceID, date string, version uint64, busy []availability.Busy) error {
	entries := make([]busyEntry, 0, len(busy))
	for _, b := range busy {
		entries = append(entries, busyEntry{BookingID: b.BookingID, Start: b.Start, End: b.End})
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	keys := []string{c.key(resourceID, date), c.versionKey(resourceID, date)}
	err = setIfCurrent.Run(ctx, c.client, keys, strconv.FormatUint(version, 10), payload, c.ttl.Milliseconds()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

// Invalidate bumps the key's version before dropping the entry. The version
// outlives entries so an in-flight reader cannot restore a dropped one.
func (c *Redis) Invalidate(ctx context.Context, resourceID, date string) error {
	versionKey := c.versionKey(resourceID, date)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.PExpire(ctx, versionKey, versionTTL(c.ttl))
		pipe.Del(ctx, c.key(resourceID, date))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

func versionTTL(ttl time.Duration) time.Duration {
	if v := 10 * ttl; v > time.Hour {
		return v
	}
	return time.Hour
}
