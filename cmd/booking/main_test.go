package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/config"
	"github.com/example/facility-booking/internal/events"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Session.Secret = "a-test-secret-of-some-length"
	cfg.Bootstrap = config.BootstrapConfig{AdminEmail: "root@campus.edu", AdminPassword: "secret1"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "booking.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewAppWiresMemoryBackends(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if _, ok := a.publisher.(events.Noop); !ok {
		t.Fatalf("expected no-op publisher, got %T", a.publisher)
	}
	if a.redis != nil {
		t.Fatal("redis client should not be opened without an address")
	}

	if err := a.bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	// Running it twice must not fail or create a second account.
	if err := a.bootstrap(ctx); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	result, err := a.auth.Authenticate(ctx, application.AuthenticateParams{Email: "root@campus.edu", Password: "secret1"})
	if err != nil {
		t.Fatalf("authenticate bootstrap admin: %v", err)
	}
	if result.User.Role != application.RoleAdmin {
		t.Fatalf("expected admin role, got %s", result.User.Role)
	}

	if a.router() == nil {
		t.Fatal("router should be built")
	}
	reconcileOnce(ctx, a, discardLogger())
}

func TestOpenPublisherRejectsUnknownDriver(t *testing.T) {
	if _, err := openPublisher(config.EventsConfig{Driver: "carrier-pigeon"}); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}

func TestRunReconcilerStopsWithContext(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runReconciler(ctx, a, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancel")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "booking ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetArgs([]string{"hash-password", "--bcrypt-cost", "4", "secret1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hash-password: %v", err)
	}

	hash := strings.TrimSpace(out.String())
	if err := application.VerifyPassword(hash, "secret1"); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
	if err := application.VerifyPassword(hash, "wrong-password"); err == nil {
		t.Fatal("hash verified a wrong password")
	}
}

func TestHashPasswordCommandReadsStdin(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"hash-password"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	if err := application.VerifyPassword(strings.TrimSpace(out.String()), "from-stdin"); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}

func TestMigrateCommandWithSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "booking.db")
	path := writeConfig(t, `
storage:
  driver: sqlite
  sqlite_dsn: "file:`+dbPath+`"
session:
  secret: a-test-secret-of-some-length
log:
  level: error
`)

	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetArgs([]string{"--config", path, "migrate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "migrations applied") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	// A second run finds nothing pending.
	out.Reset()
	cmd = rootCmd(&out)
	cmd.SetArgs([]string{"--config", path, "migrate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestReconcileCommand(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
session:
  secret: a-test-secret-of-some-length
log:
  level: error
`)

	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetArgs([]string{"--config", path, "reconcile"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "completed=0 lapsed=0" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestServeFailsOnInvalidConfig(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: floppy\n")
	cmd := rootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "serve"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected serve to reject an invalid configuration")
	}
}
