// Package config loads service settings from an optional YAML file overlaid
// with BOOKING_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. BOOKING_HTTP_ADDR.
const EnvPrefix = "BOOKING"

// Config is the complete service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Booking   BookingConfig   `yaml:"booking" envconfig:"BOOKING"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Events    EventsConfig    `yaml:"events" envconfig:"EVENTS"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
	Bootstrap BootstrapConfig `yaml:"bootstrap" envconfig:"BOOTSTRAP"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	// Driver is memory, sqlite or postgres.
	Driver      string `yaml:"driver" envconfig:"DRIVER"`
	SQLiteDSN   string `yaml:"sqlite_dsn" envconfig:"SQLITE_DSN"`
	PostgresDSN string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	// LockTimeout bounds row and advisory lock waits inside PostgreSQL.
	LockTimeout time.Duration `yaml:"lock_timeout" envconfig:"LOCK_TIMEOUT"`
}

type SessionConfig struct {
	Secret string        `yaml:"secret" envconfig:"SECRET"`
	TTL    time.Duration `yaml:"ttl" envconfig:"TTL"`
	Issuer string        `yaml:"issuer" envconfig:"ISSUER"`
}

type BookingConfig struct {
	// TimeZone resolves civil booking dates, e.g. Asia/Kolkata.
	TimeZone           string        `yaml:"time_zone" envconfig:"TIME_ZONE"`
	LockTimeout        time.Duration `yaml:"lock_timeout" envconfig:"LOCK_TIMEOUT"`
	CancelOnDeactivate bool          `yaml:"cancel_on_deactivate" envconfig:"CANCEL_ON_DEACTIVATE"`
	// ReconcileInterval enables the background reconcile ticker when positive.
	ReconcileInterval time.Duration `yaml:"reconcile_interval" envconfig:"RECONCILE_INTERVAL"`
	CacheTTL          time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
}

// RedisConfig enables the shared lock, cache and session denylist when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"ADDR"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	Prefix   string        `yaml:"prefix" envconfig:"PREFIX"`
	LockTTL  time.Duration `yaml:"lock_ttl" envconfig:"LOCK_TTL"`
}

type EventsConfig struct {
	// Driver is none, kafka or amqp.
	Driver       string   `yaml:"driver" envconfig:"DRIVER"`
	KafkaBrokers []string `yaml:"kafka_brokers" envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `yaml:"kafka_topic" envconfig:"KAFKA_TOPIC"`
	AMQPURL      string   `yaml:"amqp_url" envconfig:"AMQP_URL"`
	AMQPExchange string   `yaml:"amqp_exchange" envconfig:"AMQP_EXCHANGE"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// BootstrapConfig creates an administrator at startup when AdminEmail is set.
type BootstrapConfig struct {
	AdminEmail    string `yaml:"admin_email" envconfig:"ADMIN_EMAIL"`
	AdminPassword string `yaml:"admin_password" envconfig:"ADMIN_PASSWORD"`
	AdminName     string `yaml:"admin_name" envconfig:"ADMIN_NAME"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			SQLiteDSN:   "file:booking.db",
			LockTimeout: 3 * time.Second,
		},
		Session: SessionConfig{
			TTL:    24 * time.Hour,
			Issuer: "facility-booking",
		},
		Booking: BookingConfig{
			TimeZone:    "UTC",
			LockTimeout: 3 * time.Second,
			CacheTTL:    30 * time.Second,
		},
		Redis: RedisConfig{
			Prefix:  "booking:",
			LockTTL: 10 * time.Second,
		},
		Events: EventsConfig{
			Driver:       "none",
			KafkaTopic:   "booking.events",
			AMQPExchange: "booking.events",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path when it is non-empty, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		add("http.addr is required")
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLiteDSN == "" {
			add("storage.sqlite_dsn is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			add("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		add("storage.driver must be memory, sqlite or postgres, got %q", c.Storage.Driver)
	}

	if len(c.Session.Secret) < 16 {
		add("session.secret must be at least 16 characters")
	}
	if c.Session.TTL <= 0 {
		add("session.ttl must be positive")
	}

	if _, err := time.LoadLocation(c.Booking.TimeZone); err != nil {
		add("booking.time_zone %q is not a known time zone", c.Booking.TimeZone)
	}
	if c.Booking.LockTimeout <= 0 {
		add("booking.lock_timeout must be positive")
	}
	if c.Booking.ReconcileInterval < 0 {
		add("booking.reconcile_interval must not be negative")
	}

	switch c.Events.Driver {
	case "", "none":
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			add("events.kafka_brokers is required for the kafka driver")
		}
		if c.Events.KafkaTopic == "" {
			add("events.kafka_topic is required for the kafka driver")
		}
	case "amqp":
		if c.Events.AMQPURL == "" {
			add("events.amqp_url is required for the amqp driver")
		}
		if c.Events.AMQPExchange == "" {
			add("events.amqp_exchange is required for the amqp driver")
		}
	default:
		add("events.driver must be none, kafka or amqp, got %q", c.Events.Driver)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		add("log.level must be debug, info, warn or error")
	}
	if !slices.Contains([]string{"json", "text"}, strings.ToLower(c.Log.Format)) {
		add("log.format must be json or text")
	}

	if c.Bootstrap.AdminEmail != "" && len(c.Bootstrap.AdminPassword) < 6 {
		add("bootstrap.admin_password must be at least 6 characters when admin_email is set")
	}

	if len(problems) > 0 {
		return errors.New("config: invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the booking time zone. Call it only on a validated Config.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RedisEnabled reports whether a Redis address is configured.
func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}
