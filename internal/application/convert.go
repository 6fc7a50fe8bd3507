package application

import (
	"time"

	"github.com/example/facility-booking/internal/authz"
	"github.com/example/facility-booking/internal/lifecycle"
	"github.com/example/facility-booking/internal/persistence"
)

func profileFromRecord(u persistence.User) UserProfile {
	return UserProfile{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Phone:    u.Phone,
		Role:     Role(u.Role),
		Department: Department{
			Code:  u.DepartmentCode,
			Name:  u.DepartmentName,
			Batch: u.Batch,
		},
		Capabilities: append([]string(nil), u.Capabilities...),
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func subjectFromRecord(u persistence.User) authz.Subject {
	return authz.Subject{
		ID:           u.ID,
		Role:         Role(u.Role),
		Active:       u.Active,
		Capabilities: u.Capabilities,
	}
}

func resourceFromRecord(r persistence.Resource) Resource {
	roles := make([]Role, 0, len(r.AllowedRoles))
	for _, role := range r.AllowedRoles {
		roles = append(roles, Role(role))
	}
	if len(roles) == 0 {
		roles = nil
	}
	return Resource{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		SubCategory: r.SubCategory,
		Capacity:    r.Capacity,
		Status:      ResourceStatus(r.Status),
		Location: Location{
			Building: r.Building,
			Zone:     r.Zone,
			Floor:    r.Floor,
		},
		Rules: BookingRules{
			RequiresApproval:   r.RequiresApproval,
			AllowedRoles:       roles,
			MaxDurationHours:   r.MaxDurationHours,
			RequiredCapability: r.RequiredCapability,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func resourceToRecord(r Resource) persistence.Resource {
	roles := make([]string, 0, len(r.Rules.AllowedRoles))
	for _, role := range r.Rules.AllowedRoles {
		roles = append(roles, string(role))
	}
	if len(roles) == 0 {
		roles = nil
	}
	return persistence.Resource{
		ID:                 r.ID,
		Name:               r.Name,
		Category:           r.Category,
		SubCategory:        r.SubCategory,
		Capacity:           r.Capacity,
		Status:             string(r.Status),
		Building:           r.Location.Building,
		Zone:               r.Location.Zone,
		Floor:              r.Location.Floor,
		RequiresApproval:   r.Rules.RequiresApproval,
		AllowedRoles:       roles,
		MaxDurationHours:   r.Rules.MaxDurationHours,
		RequiredCapability: r.Rules.RequiredCapability,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func resourceFacts(r persistence.Resource) authz.ResourceFacts {
	roles := make([]authz.Role, 0, len(r.AllowedRoles))
	for _, role := range r.AllowedRoles {
		roles = append(roles, authz.Role(role))
	}
	return authz.ResourceFacts{
		Active:             r.Status == string(ResourceActive),
		AllowedRoles:       roles,
		MaxDurationHours:   r.MaxDurationHours,
		RequiredCapability: r.RequiredCapability,
	}
}

// bookingFromRecord converts a ledger entry, applying lazy time-based
// status evaluation at now.
func bookingFromRecord(b persistence.Booking, now time.Time) Booking {
	out := Booking{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		Date:       b.Date,
		Start:      b.Start,
		End:        b.End,
		Purpose:    b.Purpose,
		Status:     lifecycle.Effective(lifecycle.Status(b.Status), b.End, now),
		Resource: ResourceSnapshot{
			Name:     b.ResourceName,
			Building: b.ResourceBuilding,
			Category: b.ResourceCategory,
		},
		User: UserSnapshot{
			Name: b.UserName,
			Role: Role(b.UserRole),
		},
		CancelledBy: b.CancelledBy,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		out.CancelledAt = &at
	}
	return out
}
