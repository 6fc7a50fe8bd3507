package persistence

import "context"

// UserRepository stores accounts. Users are never deleted.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// ResourceRepository stores the resource catalog.
type ResourceRepository interface {
	CreateResource(ctx context.Context, resource Resource) error
	UpdateResource(ctx context.Context, resource Resource) error
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context) ([]Resource, error)
	DeleteResource(ctx context.Context, id string) error
}

// BookingRepository is the booking ledger.
type BookingRepository interface {
	// CreateBooking inserts booking atomically with an overlap check against
	// every Pending or Confirmed booking on the same resource. It returns
	// ErrOverlap instead of inserting when one exists.
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	// ListBookings returns matching bookings ordered by start ascending.
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// UpdateBookingStatus applies change only if the stored status equals
	// change.From, returning ErrStale otherwise.
	UpdateBookingStatus(ctx context.Context, change StatusChange) (Booking, error)
}

// Store is a complete storage backend.
type Store interface {
	UserRepository
	ResourceRepository
	BookingRepository
	Migrate(ctx context.Context) error
	Close() error
}
