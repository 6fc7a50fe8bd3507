// Package authz evaluates who may perform which action. Every function here
// is pure: callers load the facts, the gate only decides.
package authz

import (
	"fmt"
	"slices"
	"time"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleFaculty Role = "Faculty"
	RoleStudent Role = "Student"
	RoleStaff   Role = "Staff"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleFaculty, RoleStudent, RoleStaff}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return slices.Contains(Roles, r)
}

// Action names an operation subject to authorization.
type Action string

const (
	ActionManageCatalog    Action = "catalog.manage"
	ActionManageUsers      Action = "users.manage"
	ActionViewAllBookings  Action = "bookings.view_all"
	ActionApproveBooking   Action = "booking.approve"
	ActionCreateBooking    Action = "booking.create"
	ActionCancelBooking    Action = "booking.cancel"
	ActionViewUserBookings Action = "bookings.view_user"
)

// Decision codes.
const (
	CodeAllowed             = "allowed"
	CodeSubjectInactive     = "subject_inactive"
	CodeAdminOnly           = "admin_only"
	CodeResourceUnavailable = "resource_unavailable"
	CodeRoleNotAllowed      = "role_not_allowed"
	CodeDurationExceeded    = "duration_exceeded"
	CodeCapabilityRequired  = "capability_required"
	CodeNotOwner            = "not_owner"
	CodeUnknownAction       = "unknown_action"
)

// Subject is the authenticated user requesting an action.
type Subject struct {
	ID           string
	Role         Role
	Active       bool
	Capabilities []string
}

// HasCapability reports whether the subject holds the named capability.
// Admins hold every capability.
func (s Subject) HasCapability(name string) bool {
	if s.Role == RoleAdmin {
		return true
	}
	return slices.Contains(s.Capabilities, name)
}

// ResourceFacts is what the gate needs to know about the resource being booked.
type ResourceFacts struct {
	Active             bool
	AllowedRoles       []Role
	MaxDurationHours   float64
	RequiredCapability string
}

// Request bundles the inputs to a single authorization decision.
type Request struct {
	Action   Action
	Subject  Subject
	Resource ResourceFacts
	// Duration of the requested booking window.
	Duration time.Duration
	// OwnerID is the user a booking or booking list belongs to.
	OwnerID string
}

// Decision is the outcome of Authorize. Code is stable; Reason is for display.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true, Code: CodeAllowed}
}

func deny(code, reason string) Decision {
	return Decision{Code: code, Reason: reason}
}

// Authorize applies the rule table to req. Rules are evaluated in order and
// the first match wins; anything not matched is denied.
func Authorize(req Request) Decision {
	if !req.Subject.Active {
		return deny(CodeSubjectInactive, "account is deactivated")
	}

	switch req.Action {
	case ActionManageCatalog, ActionManageUsers, ActionViewAllBookings, ActionApproveBooking:
		if req.Subject.Role == RoleAdmin {
			return allow()
		}
		return deny(CodeAdminOnly, "only administrators may perform this action")
	case ActionCreateBooking:
		return authorizeCreate(req)
	case ActionCancelBooking, ActionViewUserBookings:
		if req.Subject.Role == RoleAdmin || (req.OwnerID != "" && req.OwnerID == req.Subject.ID) {
			return allow()
		}
		return deny(CodeNotOwner, "bookings may only be accessed by their owner or an administrator")
	default:
		return deny(CodeUnknownAction, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func authorizeCreate(req Request) Decision {
	res := req.Resource
	if !res.Active {
		return deny(CodeResourceUnavailable, "resource is not accepting bookings")
	}
	if len(res.AllowedRoles) > 0 && !slices.Contains(res.AllowedRoles, req.Subject.Role) {
		return deny(CodeRoleNotAllowed, fmt.Sprintf("role %s may not book this resource", req.Subject.Role))
	}
	if res.MaxDurationHours > 0 {
		limit := time.Duration(res.MaxDurationHours * float64(time.Hour))
		if req.Duration > limit {
			return deny(CodeDurationExceeded, fmt.Sprintf("bookings are limited to %g hours", res.MaxDurationHours))
		}
	}
	if res.RequiredCapability != "" && !req.Subject.HasCapability(res.RequiredCapability) {
		return deny(CodeCapabilityRequired, fmt.Sprintf("permission %q is required", res.RequiredCapability))
	}
	return allow()
}
