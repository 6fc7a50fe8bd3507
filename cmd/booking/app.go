package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/cache"
	"github.com/example/facility-booking/internal/config"
	"github.com/example/facility-booking/internal/events"
	httptransport "github.com/example/facility-booking/internal/http"
	"github.com/example/facility-booking/internal/lock"
	"github.com/example/facility-booking/internal/logging"
	"github.com/example/facility-booking/internal/metrics"
	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/persistence/memory"
	"github.com/example/facility-booking/internal/persistence/postgres"
	"github.com/example/facility-booking/internal/persistence/sqlite"
	"github.com/example/facility-booking/internal/session"
)

const availabilityCacheEntries = 4096

// app holds the wired service graph shared by every subcommand.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     persistence.Store
	publisher events.Publisher
	recorder  *metrics.Recorder
	redis     redis.UniversalClient

	auth      *application.AuthService
	bookings  *application.BookingService
	resources *application.ResourceService
	users     *application.UserService
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLiteDSN, logger)
	case "postgres":
		return postgres.Open(ctx, cfg.PostgresDSN, cfg.LockTimeout, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return events.Noop{}, nil
	case "kafka":
		return events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	case "amqp":
		return events.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// newApp opens every backend named by cfg and builds the services. Close
// must be called on success.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, recorder: metrics.New()}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	publisher, err := openPublisher(cfg.Events)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open event publisher: %w", err)
	}
	a.publisher = publisher

	var (
		locker   lock.Locker
		avail    application.AvailabilityCache
		denylist session.Denylist
	)
	if cfg.RedisEnabled() {
		client, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.redis = client
		locker = lock.NewRedis(client, cfg.Redis.Prefix+"lock:", cfg.Redis.LockTTL).WithLogger(logger)
		avail = cache.NewRedis(client, cfg.Redis.Prefix+"availability:", cfg.Booking.CacheTTL)
		denylist = session.NewRedisDenylist(client, cfg.Redis.Prefix+"revoked:", time.Now)
		logger.Info("using redis for locks, cache and session revocation", "addr", cfg.Redis.Addr)
	} else {
		locker = lock.NewMemory()
		avail = cache.NewMemory(cfg.Booking.CacheTTL, availabilityCacheEntries, time.Now)
		denylist = session.NewMemoryDenylist(time.Now)
	}

	tokens, err := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.Issuer, time.Now)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("session manager: %w", err)
	}

	ids := uuid.NewString
	a.auth = application.NewAuthServiceWithLogger(store, tokens, denylist, ids, time.Now, logger)
	a.bookings = application.NewBookingServiceWithLogger(store, locker, ids, time.Now, application.BookingOptions{
		Location:    cfg.Location(),
		LockTimeout: cfg.Booking.LockTimeout,
		Events:      publisher,
		Cache:       avail,
		Metrics:     a.recorder,
	}, logger)
	a.resources = application.NewResourceServiceWithLogger(store, locker, ids, time.Now, application.ResourceOptions{
		LockTimeout:        cfg.Booking.LockTimeout,
		CancelOnDeactivate: cfg.Booking.CancelOnDeactivate,
		Events:             publisher,
		Cache:              avail,
	}, logger)
	a.users = application.NewUserServiceWithLogger(store, time.Now, logger)
	return a, nil
}

func (a *app) router() *gin.Engine {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      httptransport.NewAuthHandler(a.auth, a.logger),
		Bookings:  httptransport.NewBookingHandler(a.bookings, a.cfg.Location(), a.logger),
		Resources: httptransport.NewResourceHandler(a.resources, a.logger),
		Users:     httptransport.NewUserHandler(a.users, a.logger),
		Sessions:  a.auth,
		Metrics:   a.recorder.Handler(),
		Logger:    a.logger,
	})
}

// bootstrap creates the configured administrator if it does not exist yet.
func (a *app) bootstrap(ctx context.Context) error {
	b := a.cfg.Bootstrap
	if b.AdminEmail == "" {
		return nil
	}
	profile, created, err := a.auth.BootstrapAdmin(ctx, b.AdminEmail, b.AdminPassword, b.AdminName)
	if err != nil {
		return fmt.Errorf("bootstrap administrator: %w", err)
	}
	if created {
		a.logger.Info("bootstrap administrator created", "user_id", profile.ID, "email", profile.Email)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
