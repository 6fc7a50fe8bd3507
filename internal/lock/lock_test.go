package lock

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMutualExclusion(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "room-1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, locker.held())
}

func TestMemoryBusyAfterTimeout(t *testing.T) {
	locker := NewMemory()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "room-1", time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "room-1", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := locker.Acquire(ctx, "room-2", 20*time.Millisecond)
	require.NoError(t, err, "distinct keys must not contend")
	other()

	release()
	release()

	again, err := locker.Acquire(ctx, "room-1", 20*time.Millisecond)
	require.NoError(t, err)
	again()
	assert.Zero(t, locker.held())
}

func TestMemoryContextCancel(t *testing.T) {
	locker := NewMemory()
	release, err := locker.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, "k", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisReleaseFailureIsLoggedOnce(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	var buf bytes.Buffer
	locker := NewRedis(client, "test:", time.Minute).
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	release := locker.releaser("test:room-1", "token")
	release()
	release()

	assert.Equal(t, 1, strings.Count(buf.String(), "lock release failed"))
	assert.Contains(t, buf.String(), "key=test:room-1")
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("BOOKING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOKING_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedis(client, "test:"+t.Name()+":", time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "room-1", time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "room-1", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrBusy)

	release()
	release()

	again, err := locker.Acquire(ctx, "room-1", 50*time.Millisecond)
	require.NoError(t, err)
	again()
}
