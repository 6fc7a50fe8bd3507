// Package migration loads versioned SQL files and applies the ones a database
// has not seen yet.
package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidFile is returned for files that do not follow {version}_{description}.sql.
	ErrInvalidFile = errors.New("migration: invalid migration file")
	// ErrDuplicateVersion is returned when two files share a version.
	ErrDuplicateVersion = errors.New("migration: duplicate version")
)

var filePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Migration is one versioned SQL script.
type Migration struct {
	Version     string
	Description string
	SQL         string
	Checksum    string
}

// Executor applies migrations to one database.
type Executor interface {
	// EnsureVersionTable creates the bookkeeping table if needed.
	EnsureVersionTable(ctx context.Context) error
	// AppliedVersions lists versions already recorded.
	AppliedVersions(ctx context.Context) (map[string]bool, error)
	// Apply runs m and records it in a single transaction.
	Apply(ctx context.Context, m Migration) error
}

// Load reads every migration file in dir of fsys, ordered by numeric version.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migration: read %s: %w", dir, err)
	}

	seen := make(map[string]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		matches := filePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFile, entry.Name())
		}
		version := matches[1]
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateVersion, version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("migration: read %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(body)) == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidFile, entry.Name())
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:     version,
			Description: strings.ReplaceAll(matches[2], "_", " "),
			SQL:         string(body),
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		vi, _ := strconv.Atoi(out[i].Version)
		vj, _ := strconv.Atoi(out[j].Version)
		return vi < vj
	})
	return out, nil
}

// Runner applies pending migrations in order.
type Runner struct {
	executor   Executor
	migrations []Migration
	logger     *slog.Logger
}

// NewRunner constructs a runner over an already loaded migration set.
func NewRunner(executor Executor, migrations []Migration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{executor: executor, migrations: migrations, logger: logger.With("component", "migration")}
}

// Pending returns the migrations not yet recorded.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	if err := r.executor.EnsureVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("migration: ensure version table: %w", err)
	}
	applied, err := r.executor.AppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration: applied versions: %w", err)
	}
	var pending []Migration
	for _, m := range r.migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Run applies every pending migration and returns the versions it applied.
// It stops at the first failure.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	pending, err := r.Pending(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(pending))
	for _, m := range pending {
		start := time.Now()
		if err := r.executor.Apply(ctx, m); err != nil {
			r.logger.ErrorContext(ctx, "migration failed", "version", m.Version, "error", err)
			return applied, fmt.Errorf("migration: apply %s (%s): %w", m.Version, m.Description, err)
		}
		applied = append(applied, m.Version)
		r.logger.InfoContext(ctx, "migration applied",
			"version", m.Version,
			"description", m.Description,
			"duration", time.Since(start),
		)
	}
	return applied, nil
}
