package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/persistence/storetest"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, persistence.ErrNotFound},
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, persistence.ErrDuplicate},
		{"exclusion", &pgconn.PgError{Code: codeExclusionViolation}, persistence.ErrOverlap},
		{"lock timeout", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: codeLockNotAvailable}), persistence.ErrBusy},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, persistence.ErrBusy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tc.in), tc.want)
		})
	}

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
	assert.NoError(t, mapError(nil))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

// TestStorageContract runs against a live database when BOOKING_TEST_POSTGRES_DSN is set.
// Each subtest truncates the tables it uses.
func TestStorageContract(t *testing.T) {
	dsn := os.Getenv("BOOKING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOOKING_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn, time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	storetest.Run(t, func(t *testing.T) persistence.Store {
		_, err := store.pool.Exec(ctx, `TRUNCATE users, resources, bookings`)
		require.NoError(t, err)
		return nopCloser{store}
	})
}

type nopCloser struct{ *Storage }

func (nopCloser) Close() error { return nil }
