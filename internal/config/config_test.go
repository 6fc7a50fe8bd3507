package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "booking.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("BOOKING_SESSION_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 3*time.Second, cfg.Booking.LockTimeout)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
http:
  addr: ":9090"
storage:
  driver: postgres
  postgres_dsn: postgres://localhost/booking
session:
  secret: `+testSecret+`
  ttl: 2h
booking:
  time_zone: Asia/Kolkata
  lock_timeout: 500ms
  cancel_on_deactivate: true
events:
  driver: kafka
  kafka_brokers: [k1:9092, k2:9092]
log:
  format: text
`)
	t.Setenv("BOOKING_HTTP_ADDR", ":7070")
	t.Setenv("BOOKING_REDIS_ADDR", "localhost:6379")
	t.Setenv("BOOKING_BOOKING_RECONCILE_INTERVAL", "5m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Booking.LockTimeout)
	assert.True(t, cfg.Booking.CancelOnDeactivate)
	assert.Equal(t, 5*time.Minute, cfg.Booking.ReconcileInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "booking.events", cfg.Events.KafkaTopic)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
	assert.True(t, cfg.RedisEnabled())
}

func TestLoadEnvList(t *testing.T) {
	t.Setenv("BOOKING_SESSION_SECRET", testSecret)
	t.Setenv("BOOKING_EVENTS_DRIVER", "kafka")
	t.Setenv("BOOKING_EVENTS_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.KafkaBrokers)
}

func TestLoadReportsAllProblems(t *testing.T) {
	path := writeFile(t, `
storage:
  driver: mysql
booking:
  time_zone: Mars/Olympus
events:
  driver: amqp
log:
  level: loud
`)
	_, err := Load(path)
	require.Error(t, err)
	for _, want := range []string{"storage.driver", "session.secret", "booking.time_zone", "events.amqp_url", "log.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read")

	_, err = Load(writeFile(t, "http: [not, a, map]"))
	assert.ErrorContains(t, err, "parse")

	t.Setenv("BOOKING_SESSION_TTL", "forever")
	_, err = Load("")
	assert.ErrorContains(t, err, "environment")
}
