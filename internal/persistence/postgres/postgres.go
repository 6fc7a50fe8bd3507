// Package postgres is the PostgreSQL storage backend built on pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLSTATE codes mapped to persistence errors.
const (
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Storage implements persistence.Store on a pgx connection pool.
type Storage struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	logger      *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open connects a pool to dsn. lockTimeout bounds how long CreateBooking
// waits for another admission on the same resource.
func Open(ctx context.Context, dsn string, lockTimeout time.Duration, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Storage{pool: pool, lockTimeout: lockTimeout, logger: logger.With("storage", "postgres")}, nil
}

// Close releases the pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations, err := migration.Load(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	_, err = migration.NewRunner(executor{pool: s.pool}, migrations, s.logger).Run(ctx)
	return err
}

type executor struct {
	pool *pgxpool.Pool
}

func (e executor) EnsureVersionTable(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		checksum   TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return mapError(err)
}

func (e executor) AppliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := e.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, mapError(err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (e executor) Apply(ctx context.Context, m migration.Migration) error {
	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)`, m.Version, m.Checksum)
		return err
	})
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case codeExclusionViolation:
		return fmt.Errorf("%w: %v", persistence.ErrOverlap, err)
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %v", persistence.ErrBusy, err)
	}
	return err
}
