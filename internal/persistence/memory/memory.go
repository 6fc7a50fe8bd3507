// Package memory is an in-process storage backend used for local runs and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/persistence"
)

// Storage keeps every record in maps guarded by a single RWMutex. The write
// lock makes CreateBooking's overlap check and insert one atomic step.
type Storage struct {
	mu        sync.RWMutex
	users     map[string]persistence.User
	resources map[string]persistence.Resource
	bookings  map[string]persistence.Booking
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:     make(map[string]persistence.User),
		resources: make(map[string]persistence.Resource),
		bookings:  make(map[string]persistence.Booking),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Migrate is a no-op.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// --- UserRepository ---

func (s *Storage) CreateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if s.emailTakenLocked(user.ID, user.Email) {
		return persistence.ErrDuplicate
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Storage) UpdateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if s.emailTakenLocked(user.ID, user.Email) {
		return persistence.ErrDuplicate
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(_ context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) emailTakenLocked(id, email string) bool {
	for otherID, other := range s.users {
		if otherID != id && strings.EqualFold(other.Email, email) {
			return true
		}
	}
	return false
}

// --- ResourceRepository ---

func (s *Storage) CreateResource(_ context.Context, resource persistence.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[resource.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.resources[resource.ID] = cloneResource(resource)
	return nil
}

func (s *Storage) UpdateResource(_ context.Context, resource persistence.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[resource.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.resources[resource.ID] = cloneResource(resource)
	return nil
}

func (s *Storage) GetResource(_ context.Context, id string) (persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.resources[id]
	if !ok {
		return persistence.Resource{}, persistence.ErrNotFound
	}
	return cloneResource(resource), nil
}

// ListResources returns the catalog ordered by name, then id.
func (s *Storage) ListResources(_ context.Context) ([]persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resources := make([]persistence.Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		resources = append(resources, cloneResource(resource))
	}
	sort.Slice(resources, func(i, j int) bool {
		if resources[i].Name == resources[j].Name {
			return resources[i].ID < resources[j].ID
		}
		return resources[i].Name < resources[j].Name
	})
	return resources, nil
}

func (s *Storage) DeleteResource(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.resources, id)
	return nil
}

// --- BookingRepository ---

func (s *Storage) CreateBooking(_ context.Context, booking persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}

	candidate := availability.Interval{Start: booking.Start, End: booking.End}
	for _, existing := range s.bookings {
		if existing.ResourceID != booking.ResourceID || !slices.Contains(persistence.ActiveStatuses, existing.Status) {
			continue
		}
		if availability.Overlaps(candidate, availability.Interval{Start: existing.Start, End: existing.End}) {
			return persistence.ErrOverlap
		}
	}

	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (s *Storage) GetBooking(_ context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

func (s *Storage) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if filter.Matches(booking) {
			bookings = append(bookings, cloneBooking(booking))
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
	return bookings, nil
}

func (s *Storage) UpdateBookingStatus(_ context.Context, change persistence.StatusChange) (persistence.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[change.BookingID]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	if booking.Status != change.From {
		return cloneBooking(booking), persistence.ErrStale
	}

	booking.Status = change.To
	booking.UpdatedAt = change.At
	if change.Cancels() {
		at := change.At
		booking.CancelledAt = &at
		booking.CancelledBy = change.By
	}
	s.bookings[booking.ID] = booking
	return cloneBooking(booking), nil
}

func cloneUser(user persistence.User) persistence.User {
	user.Capabilities = slices.Clone(user.Capabilities)
	return user
}

func cloneResource(resource persistence.Resource) persistence.Resource {
	resource.AllowedRoles = slices.Clone(resource.AllowedRoles)
	return resource
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	if booking.CancelledAt != nil {
		at := *booking.CancelledAt
		booking.CancelledAt = &at
	}
	return booking
}
