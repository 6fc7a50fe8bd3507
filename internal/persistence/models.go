package persistence

import (
	"time"

	"github.com/example/facility-booking/internal/lifecycle"
)

// ActiveStatuses are the booking statuses that occupy a time window.
var ActiveStatuses = []string{string(lifecycle.StatusPending), string(lifecycle.StatusConfirmed)}

// User is a stored account.
type User struct {
	ID             string
	Email          string
	FullName       string
	Phone          string
	Role           string
	DepartmentCode string
	DepartmentName string
	Batch          string
	Capabilities   []string
	Active         bool
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Resource is a stored catalog entry together with its booking rules.
type Resource struct {
	ID                 string
	Name               string
	Category           string
	SubCategory        string
	Capacity           int
	Status             string
	Building           string
	Zone               string
	Floor              string
	RequiresApproval   bool
	AllowedRoles       []string
	MaxDurationHours   float64
	RequiredCapability string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Booking is a stored ledger entry. Snapshot fields are frozen at creation.
type Booking struct {
	ID               string
	ResourceID       string
	UserID           string
	Date             string
	Start            time.Time
	End              time.Time
	Purpose          string
	Status           string
	ResourceName     string
	ResourceBuilding string
	ResourceCategory string
	UserName         string
	UserRole         string
	CancelledBy      string
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BookingFilter narrows booking queries. Zero values are unbounded.
type BookingFilter struct {
	ResourceID string
	UserID     string
	Statuses   []string
	// From and To select bookings whose [Start, End) overlaps [From, To).
	From time.Time
	To   time.Time
}

// StatusChange is a conditional status update applied by UpdateBookingStatus.
type StatusChange struct {
	BookingID string
	From      string
	To        string
	At        time.Time
	// By is recorded as CancelledBy when To is Cancelled.
	By string
}

// Cancels reports whether the change moves a booking to Cancelled.
func (c StatusChange) Cancels() bool {
	return c.To == string(lifecycle.StatusCancelled)
}
