package application

import (
	"time"

	"github.com/example/facility-booking/internal/authz"
	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/lifecycle"
)

// Role is the closed set of user roles.
type Role = authz.Role

const (
	RoleAdmin   = authz.RoleAdmin
	RoleFaculty = authz.RoleFaculty
	RoleStudent = authz.RoleStudent
	RoleStaff   = authz.RoleStaff
)

// Capability flags granted by administrators.
const (
	CapabilityBookLabs       = "book_labs"
	CapabilityBookAuditorium = "book_auditorium"
)

// Principal is the authenticated caller, derived from a validated session.
// It is passed explicitly with every request rather than held globally.
type Principal struct {
	UserID    string
	Role      Role
	Email     string
	Name      string
	SessionID string
}

// IsAdmin reports whether the principal's session carries the Admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Department groups a user's academic affiliation.
type Department struct {
	Code  string
	Name  string
	Batch string
}

// UserProfile is a user as exposed to callers; it never carries the password hash.
type UserProfile struct {
	ID           string
	Email        string
	FullName     string
	Phone        string
	Role         Role
	Department   Department
	Capabilities []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterInput captures self-registration fields.
type RegisterInput struct {
	Email      string
	Password   string
	FullName   string
	Phone      string
	Role       Role
	Department Department
}

// ResourceStatus is the operational state of a resource.
type ResourceStatus string

const (
	ResourceActive      ResourceStatus = "Active"
	ResourceMaintenance ResourceStatus = "Maintenance"
	ResourceInactive    ResourceStatus = "Inactive"
)

// IsValid reports whether s is a known status.
func (s ResourceStatus) IsValid() bool {
	switch s {
	case ResourceActive, ResourceMaintenance, ResourceInactive:
		return true
	}
	return false
}

// Location describes where a resource is.
type Location struct {
	Building string
	Zone     string
	Floor    string
}

// BookingRules constrain who may book a resource and for how long.
type BookingRules struct {
	RequiresApproval bool
	// AllowedRoles empty means every role may book.
	AllowedRoles []Role
	// MaxDurationHours zero means unlimited.
	MaxDurationHours   float64
	RequiredCapability string
}

// Resource is a bookable catalog entry.
type Resource struct {
	ID          string
	Name        string
	Category    string
	SubCategory string
	Capacity    int
	Status      ResourceStatus
	Location    Location
	Rules       BookingRules
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ResourceInput captures administrator supplied resource fields. ID is only
// honoured on create; an empty ID is generated.
type ResourceInput struct {
	ID          string
	Name        string
	Category    string
	SubCategory string
	Capacity    int
	Status      ResourceStatus
	Location    Location
	Rules       BookingRules
}

// ResourceSnapshot freezes resource details on a booking at creation time.
type ResourceSnapshot struct {
	Name     string
	Building string
	Category string
}

// UserSnapshot freezes user details on a booking at creation time.
type UserSnapshot struct {
	Name string
	Role Role
}

// Booking is a reservation of one resource for one window. Status is the
// effective status at the time the booking was read.
type Booking struct {
	ID          string
	ResourceID  string
	UserID      string
	Date        string
	Start       time.Time
	End         time.Time
	Purpose     string
	Status      lifecycle.Status
	Resource    ResourceSnapshot
	User        UserSnapshot
	CancelledBy string
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookingInput is a booking request in civil date and time-of-day terms.
type BookingInput struct {
	ResourceID string
	Date       string
	StartTime  string
	EndTime    string
	Purpose    string
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// BookingQuery narrows the administrator booking listing.
type BookingQuery struct {
	ResourceID string
	UserID     string
	Status     lifecycle.Status
	Date       string
}

// Availability is the advisory busy schedule of a resource for one date.
type Availability struct {
	ResourceID string
	Date       string
	Busy       []availability.Busy
}

// ReconcileResult counts statuses persisted by a reconcile pass.
type ReconcileResult struct {
	Completed int
	Lapsed    int
}

// AuthenticateParams carries login credentials.
type AuthenticateParams struct {
	Email    string
	Password string
}

// Session is an issued session token.
type Session struct {
	ID        string
	UserID    string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthenticateResult is returned on successful login.
type AuthenticateResult struct {
	Session Session
	User    UserProfile
}
