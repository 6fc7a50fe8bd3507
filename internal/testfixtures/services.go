package testfixtures

import (
	"log/slog"
	"testing"
	"time"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/lock"
	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/session"
)

const testSessionSecret = "fixture-session-secret"

// ServiceFactory constructs application services with deterministic
// identifiers and a controllable clock.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) {
		f.Clock = clock
	}
}

func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) {
		f.Logger = logger
	}
}

// ServiceDeps selects the store and optional service settings. Zero lock
// timeouts default to one second.
type ServiceDeps struct {
	Store         persistence.Store
	Booking       application.BookingOptions
	Resource      application.ResourceOptions
	Denylist      session.Denylist
	RealPasswords bool
}

// Services is a wired service graph sharing one store, locker and clock.
type Services struct {
	Store     persistence.Store
	Locker    *lock.Memory
	Tokens    *session.Manager
	Auth      *application.AuthService
	Bookings  *application.BookingService
	Resources *application.ResourceService
	Users     *application.UserService
}

// Build wires every service over deps.Store. Passwords are checked with
// PlainVerify unless deps.RealPasswords asks for the production hashers.
func (f *ServiceFactory) Build(tb testing.TB, deps ServiceDeps) *Services {
	tb.Helper()
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()

	tokens, err := session.NewManager(testSessionSecret, time.Hour, "facility-booking", now)
	if err != nil {
		tb.Fatalf("session manager: %v", err)
	}
	denylist := deps.Denylist
	if denylist == nil {
		denylist = session.NewMemoryDenylist(now)
	}

	booking := deps.Booking
	if booking.LockTimeout == 0 {
		booking.LockTimeout = time.Second
	}
	resource := deps.Resource
	if resource.LockTimeout == 0 {
		resource.LockTimeout = time.Second
	}

	locker := lock.NewMemory()
	auth := application.NewAuthServiceWithLogger(deps.Store, tokens, denylist, ids, now, f.Logger)
	if !deps.RealPasswords {
		auth = auth.WithPasswordFuncs(PlainHash, PlainVerify)
	}

	return &Services{
		Store:     deps.Store,
		Locker:    locker,
		Tokens:    tokens,
		Auth:      auth,
		Bookings:  application.NewBookingServiceWithLogger(deps.Store, locker, ids, now, booking, f.Logger),
		Resources: application.NewResourceServiceWithLogger(deps.Store, locker, ids, now, resource, f.Logger),
		Users:     application.NewUserServiceWithLogger(deps.Store, now, f.Logger),
	}
}
