package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/persistence/storetest"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "booking.db")
	store, err := Open(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStorageContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store { return openTestStorage(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))

	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNormalizeDSN(t *testing.T) {
	got := normalizeDSN("file:test.db")
	assert.Contains(t, got, "_txlock=immediate")
	assert.Contains(t, got, "busy_timeout(5000)")
	assert.Contains(t, got, "file:test.db?")

	custom := "file:test.db?_pragma=busy_timeout(100)&_txlock=deferred&_pragma=foreign_keys(0)&_pragma=journal_mode(DELETE)"
	assert.Equal(t, custom, normalizeDSN(custom))
}

func TestMapErrorNotFound(t *testing.T) {
	store := openTestStorage(t)
	_, err := store.GetBooking(context.Background(), "nope")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
