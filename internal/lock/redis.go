package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance pointed at the same Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger *slog.Logger
}

// NewRedis constructs a Redis-backed locker. ttl bounds how long a crashed
// holder can keep a key.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = "lock:"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, poll: 25 * time.Millisecond, logger: slog.Default()}
}

// WithLogger sets the logger used to report failed releases.
func (r *Redis) WithLogger(logger *slog.Logger) *Redis {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	if r == nil || r.client == nil {
		return nil, errors.New("lock: redis client not configured")
	}

	fullKey := r.prefix + key
	token := uuid.NewString()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if !deadline.IsZero() && time.Now().Add(r.poll).After(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.poll):
		}
	}

	return r.releaser(fullKey, token), nil
}

// releaser returns an idempotent release for fullKey. A failed release leaves
// the key held until its TTL expires, so it is logged.
func (r *Redis) releaser(fullKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// A fresh context lets a cancelled request still free the key.
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{fullKey}, token).Err(); err != nil {
				r.logger.WarnContext(ctx, "lock release failed, key held until expiry",
					"key", fullKey, "ttl", r.ttl, "error", err)
			}
		})
	}
}
