package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key (id, email) is already taken.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrOverlap is returned when a booking insert would overlap an active booking.
	ErrOverlap = errors.New("persistence: booking overlaps an active booking")
	// ErrStale is returned when a conditional status update found a different status.
	ErrStale = errors.New("persistence: stale status")
	// ErrBusy is returned when the backend could not obtain its row or database lock in time.
	ErrBusy = errors.New("persistence: busy")
)
