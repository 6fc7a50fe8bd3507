package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/facility-booking/internal/lock"
	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/persistence/memory"
	"github.com/example/facility-booking/internal/session"
)

var testStart = time.Date(2025, time.February, 20, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type testEnv struct {
	store     *memory.Storage
	clock     *testClock
	locker    *lock.Memory
	tokens    *session.Manager
	auth      *AuthService
	bookings  *BookingService
	resources *ResourceService
	users     *UserService
}

type envOption func(*BookingOptions, *ResourceOptions)

func withCancelOnDeactivate() envOption {
	return func(_ *BookingOptions, r *ResourceOptions) { r.CancelOnDeactivate = true }
}

func withBookingOptions(fn func(*BookingOptions)) envOption {
	return func(b *BookingOptions, _ *ResourceOptions) { fn(b) }
}

func plainHash(password string) (string, error) { return "plain:" + password, nil }

func plainVerify(hash, password string) error {
	if hash != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	var seq atomic.Uint64
	ids := func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }

	env := &testEnv{
		store:  memory.New(),
		clock:  &testClock{now: testStart},
		locker: lock.NewMemory(),
	}

	tokens, err := session.NewManager("test-secret", time.Hour, "", env.clock.Now)
	require.NoError(t, err)
	env.tokens = tokens

	bookingOpts := BookingOptions{LockTimeout: time.Second}
	resourceOpts := ResourceOptions{LockTimeout: time.Second}
	for _, opt := range opts {
		opt(&bookingOpts, &resourceOpts)
	}

	env.auth = NewAuthService(env.store, tokens, session.NewMemoryDenylist(env.clock.Now), ids, env.clock.Now).
		WithPasswordFuncs(plainHash, plainVerify)
	env.bookings = NewBookingService(env.store, env.locker, ids, env.clock.Now, bookingOpts)
	env.resources = NewResourceService(env.store, env.locker, ids, env.clock.Now, resourceOpts)
	env.users = NewUserService(env.store, env.clock.Now)

	env.seedUser(t, "admin", RoleAdmin)
	env.seedUser(t, "student", RoleStudent)
	env.seedUser(t, "faculty", RoleFaculty)
	env.seedUser(t, "staff", RoleStaff)
	env.seedResource(t, persistence.Resource{ID: "lab-1", Name: "Lab-1", Category: "Lab"})
	return env
}

func (e *testEnv) seedUser(t *testing.T, id string, role Role, capabilities ...string) {
	t.Helper()
	require.NoError(t, e.store.CreateUser(context.Background(), persistence.User{
		ID:           id,
		Email:        id + "@campus.edu",
		FullName:     id + " user",
		Role:         string(role),
		Capabilities: capabilities,
		Active:       true,
		PasswordHash: "plain:secret1",
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
	}))
}

func (e *testEnv) seedResource(t *testing.T, r persistence.Resource) {
	t.Helper()
	if r.Status == "" {
		r.Status = string(ResourceActive)
	}
	if r.Building == "" {
		r.Building = "Main"
	}
	if r.Capacity == 0 {
		r.Capacity = 30
	}
	r.CreatedAt, r.UpdatedAt = testStart, testStart
	require.NoError(t, e.store.CreateResource(context.Background(), r))
}

func principal(id string, role Role) Principal {
	return Principal{UserID: id, Role: role}
}

var (
	adminP   = principal("admin", RoleAdmin)
	studentP = principal("student", RoleStudent)
	facultyP = principal("faculty", RoleFaculty)
	staffP   = principal("staff", RoleStaff)
)

func (e *testEnv) book(p Principal, resourceID, date, start, end string) (Booking, error) {
	return e.bookings.CreateBooking(context.Background(), CreateBookingParams{
		Principal: p,
		Input:     BookingInput{ResourceID: resourceID, Date: date, StartTime: start, EndTime: end, Purpose: "class"},
	})
}
