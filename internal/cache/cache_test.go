package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/facility-booking/internal/availability"
)

func sampleBusy() []availability.Busy {
	start := time.Date(2030, 3, 14, 9, 0, 0, 0, time.UTC)
	return []availability.Busy{{
		BookingID: "b-1",
		Interval:  availability.Interval{Start: start, End: start.Add(time.Hour)},
	}}
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute, 10, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", 0, sampleBusy()))
	got, ok, err := c.Get(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleBusy(), got)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryEmptyScheduleIsAHit(t *testing.T) {
	c := NewMemory(time.Minute, 10, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", 0, nil))
	got, ok, err := c.Get(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestMemoryInvalidateAndBound(t *testing.T) {
	c := NewMemory(time.Minute, 2, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "d", 0, sampleBusy()))
	require.NoError(t, c.Set(ctx, "b", "d", 0, sampleBusy()))
	require.NoError(t, c.Set(ctx, "c", "d", 0, sampleBusy()))
	assert.Equal(t, 2, c.len())

	require.NoError(t, c.Invalidate(ctx, "c", "d"))
	_, ok, _ := c.Get(ctx, "c", "d")
	assert.False(t, ok)
}

func TestMemoryReturnsCopies(t *testing.T) {
	c := NewMemory(time.Minute, 10, nil)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", 0, sampleBusy()))

	got, _, _ := c.Get(ctx, "lab-1", "2030-03-14")
	got[0].BookingID = "mutated"

	again, _, _ := c.Get(ctx, "lab-1", "2030-03-14")
	assert.Equal(t, "b-1", again[0].BookingID)
}

func TestMemorySetAfterInvalidateIsDropped(t *testing.T) {
	c := NewMemory(time.Minute, 10, nil)
	ctx := context.Background()

	stale, err := c.Version(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "lab-1", "2030-03-14"))

	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", stale, nil))
	_, ok, _ := c.Get(ctx, "lab-1", "2030-03-14")
	assert.False(t, ok)

	// Other keys are unaffected.
	require.NoError(t, c.Set(ctx, "lab-2", "2030-03-14", stale, nil))
	_, ok, _ = c.Get(ctx, "lab-2", "2030-03-14")
	assert.True(t, ok)

	fresh, err := c.Version(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", fresh, sampleBusy()))
	got, ok, _ := c.Get(ctx, "lab-1", "2030-03-14")
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestMemoryVersionFloorAfterPrune(t *testing.T) {
	c := NewMemory(time.Minute, 2, nil)
	ctx := context.Background()

	stale, err := c.Version(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "lab-1", "2030-03-14"))
	require.NoError(t, c.Invalidate(ctx, "lab-2", "2030-03-14"))
	require.NoError(t, c.Invalidate(ctx, "lab-3", "2030-03-14"))

	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", stale, nil))
	_, ok, _ := c.Get(ctx, "lab-1", "2030-03-14")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("BOOKING_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOOKING_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedis(client, "test:"+t.Name()+":", time.Minute)
	ctx := context.Background()
	t.Cleanup(func() {
		_ = client.Del(ctx, c.key("lab-1", "2030-03-14"), c.versionKey("lab-1", "2030-03-14")).Err()
	})

	_, ok, err := c.Get(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	assert.False(t, ok)

	version, err := c.Version(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", version, sampleBusy()))
	got, ok, err := c.Get(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, sampleBusy()[0].Start.Equal(got[0].Start))

	require.NoError(t, c.Invalidate(ctx, "lab-1", "2030-03-14"))
	_, ok, err = c.Get(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "lab-1", "2030-03-14", version, sampleBusy()))
	_, ok, err = c.Get(ctx, "lab-1", "2030-03-14")
	require.NoError(t, err)
	assert.False(t, ok, "a version read before Invalidate must not repopulate")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "availability:lab-1:2030-03-14", Key("lab-1", "2030-03-14"))
}
