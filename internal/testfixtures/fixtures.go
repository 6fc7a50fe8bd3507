// Package testfixtures builds campus users, resources and fully wired
// services for tests outside the application package.
package testfixtures

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/persistence"
)

// DefaultPassword is the password of every seeded user.
const DefaultPassword = "secret1"

const plainHashPrefix = "plain:"

var referenceTime = time.Date(2025, time.February, 20, 8, 0, 0, 0, time.UTC)

// ReferenceTime is the fixed "now" of fixture clocks.
func ReferenceTime() time.Time {
	return referenceTime
}

// FutureDate returns the civil date days after ReferenceTime.
func FutureDate(days int) string {
	return referenceTime.AddDate(0, 0, days).Format(availability.DateLayout)
}

// PlainHash and PlainVerify replace argon2 in tests. They must be used as a pair.
func PlainHash(password string) (string, error) {
	return plainHashPrefix + password, nil
}

func PlainVerify(hash, password string) error {
	if !strings.HasPrefix(hash, plainHashPrefix) || hash != plainHashPrefix+password {
		return application.ErrInvalidCredentials
	}
	return nil
}

// UserOption adjusts a seeded user.
type UserOption func(*persistence.User)

// NewUser returns an active user with email <id>@campus.edu and DefaultPassword.
func NewUser(id string, role application.Role, opts ...UserOption) persistence.User {
	user := persistence.User{
		ID:           id,
		Email:        id + "@campus.edu",
		FullName:     strings.ToUpper(id[:1]) + id[1:] + " User",
		Role:         string(role),
		Active:       true,
		PasswordHash: plainHashPrefix + DefaultPassword,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

func WithCapabilities(capabilities ...string) UserOption {
	return func(u *persistence.User) {
		u.Capabilities = append([]string(nil), capabilities...)
	}
}

func Deactivated() UserOption {
	return func(u *persistence.User) {
		u.Active = false
	}
}

// ResourceOption adjusts a seeded resource.
type ResourceOption func(*persistence.Resource)

// NewResource returns an Active lab in the Main building with no booking rules.
func NewResource(id, name string, opts ...ResourceOption) persistence.Resource {
	resource := persistence.Resource{
		ID:        id,
		Name:      name,
		Category:  "Lab",
		Capacity:  30,
		Status:    string(application.ResourceActive),
		Building:  "Main",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&resource)
	}
	return resource
}

func WithCategory(category string) ResourceOption {
	return func(r *persistence.Resource) {
		r.Category = category
	}
}

func WithStatus(status application.ResourceStatus) ResourceOption {
	return func(r *persistence.Resource) {
		r.Status = string(status)
	}
}

func WithAllowedRoles(roles ...application.Role) ResourceOption {
	return func(r *persistence.Resource) {
		r.AllowedRoles = r.AllowedRoles[:0]
		for _, role := range roles {
			r.AllowedRoles = append(r.AllowedRoles, string(role))
		}
	}
}

func WithMaxDurationHours(hours float64) ResourceOption {
	return func(r *persistence.Resource) {
		r.MaxDurationHours = hours
	}
}

func RequiringApproval() ResourceOption {
	return func(r *persistence.Resource) {
		r.RequiresApproval = true
	}
}

func RequiringCapability(capability string) ResourceOption {
	return func(r *persistence.Resource) {
		r.RequiredCapability = capability
	}
}

// Dataset is a set of records to seed into a store.
type Dataset struct {
	Users     []persistence.User
	Resources []persistence.Resource
}

// Campus is the default dataset: one user per role, an open lab and an
// auditorium that requires approval and the book_auditorium capability.
func Campus() Dataset {
	return Dataset{
		Users: []persistence.User{
			NewUser("admin", application.RoleAdmin),
			NewUser("student", application.RoleStudent),
			NewUser("faculty", application.RoleFaculty, WithCapabilities(application.CapabilityBookAuditorium)),
			NewUser("staff", application.RoleStaff),
		},
		Resources: []persistence.Resource{
			NewResource("lab-1", "Lab-1"),
			NewResource("auditorium", "Main Auditorium",
				WithCategory("Auditorium"),
				RequiringApproval(),
				RequiringCapability(application.CapabilityBookAuditorium),
				WithMaxDurationHours(4),
			),
		},
	}
}

// Seed inserts data into store, failing the test on any error.
func Seed(tb testing.TB, store persistence.Store, data Dataset) {
	tb.Helper()
	ctx := context.Background()
	for _, user := range data.Users {
		if err := store.CreateUser(ctx, user); err != nil {
			tb.Fatalf("seed user %s: %v", user.ID, err)
		}
	}
	for _, resource := range data.Resources {
		if err := store.CreateResource(ctx, resource); err != nil {
			tb.Fatalf("seed resource %s: %v", resource.ID, err)
		}
	}
}

// PrincipalFor returns the principal a session for user would carry.
func PrincipalFor(user persistence.User) application.Principal {
	return application.Principal{
		UserID: user.ID,
		Role:   application.Role(user.Role),
		Email:  user.Email,
		Name:   user.FullName,
	}
}
