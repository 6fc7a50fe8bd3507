package http

import (
	"time"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/lifecycle"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      userProfile `json:"user"`
}

type departmentDTO struct {
	Code  string `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
	Batch string `json:"batch,omitempty"`
}

type registerRequest struct {
	Email      string        `json:"email"`
	Password   string        `json:"password"`
	FullName   string        `json:"fullName"`
	Phone      string        `json:"phone"`
	Role       string        `json:"role"`
	Department departmentDTO `json:"department"`
}

type userProfile struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	FullName     string        `json:"fullName"`
	Phone        string        `json:"phone,omitempty"`
	Role         string        `json:"role"`
	Department   departmentDTO `json:"department"`
	Capabilities []string      `json:"capabilities"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func toUserProfile(p application.UserProfile) userProfile {
	capabilities := p.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}
	return userProfile{
		ID:       p.ID,
		Email:    p.Email,
		FullName: p.FullName,
		Phone:    p.Phone,
		Role:     string(p.Role),
		Department: departmentDTO{
			Code:  p.Department.Code,
			Name:  p.Department.Name,
			Batch: p.Department.Batch,
		},
		Capabilities: capabilities,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type roleRequest struct {
	Role string `json:"role"`
}

type capabilitiesRequest struct {
	Capabilities []string `json:"capabilities"`
}

type locationDTO struct {
	Building string `json:"building"`
	Zone     string `json:"zone,omitempty"`
	Floor    string `json:"floor,omitempty"`
}

type bookingRulesDTO struct {
	RequiresApproval   bool     `json:"requiresApproval"`
	AllowedRoles       []string `json:"allowedRoles"`
	MaxDurationHours   float64  `json:"maxDurationHours,omitempty"`
	RequiredCapability string   `json:"requiredCapability,omitempty"`
}

type resourceRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	SubCategory  string          `json:"subCategory"`
	Capacity     int             `json:"capacity"`
	Status       string          `json:"status"`
	Location     locationDTO     `json:"location"`
	BookingRules bookingRulesDTO `json:"bookingRules"`
}

func (r resourceRequest) toInput() application.ResourceInput {
	roles := make([]application.Role, 0, len(r.BookingRules.AllowedRoles))
	for _, role := range r.BookingRules.AllowedRoles {
		roles = append(roles, application.Role(role))
	}
	return application.ResourceInput{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		SubCategory: r.SubCategory,
		Capacity:    r.Capacity,
		Status:      application.ResourceStatus(r.Status),
		Location: application.Location{
			Building: r.Location.Building,
			Zone:     r.Location.Zone,
			Floor:    r.Location.Floor,
		},
		Rules: application.BookingRules{
			RequiresApproval:   r.BookingRules.RequiresApproval,
			AllowedRoles:       roles,
			MaxDurationHours:   r.BookingRules.MaxDurationHours,
			RequiredCapability: r.BookingRules.RequiredCapability,
		},
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type resourceDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	SubCategory  string          `json:"subCategory,omitempty"`
	Capacity     int             `json:"capacity"`
	Status       string          `json:"status"`
	Location     locationDTO     `json:"location"`
	BookingRules bookingRulesDTO `json:"bookingRules"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func toResourceDTO(r application.Resource) resourceDTO {
	roles := make([]string, 0, len(r.Rules.AllowedRoles))
	for _, role := range r.Rules.AllowedRoles {
		roles = append(roles, string(role))
	}
	return resourceDTO{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		SubCategory: r.SubCategory,
		Capacity:    r.Capacity,
		Status:      string(r.Status),
		Location: locationDTO{
			Building: r.Location.Building,
			Zone:     r.Location.Zone,
			Floor:    r.Location.Floor,
		},
		BookingRules: bookingRulesDTO{
			RequiresApproval:   r.Rules.RequiresApproval,
			AllowedRoles:       roles,
			MaxDurationHours:   r.Rules.MaxDurationHours,
			RequiredCapability: r.Rules.RequiredCapability,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type bookingRequest struct {
	ResourceID string `json:"resourceId"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Purpose    string `json:"purpose"`
}

type bookingDTO struct {
	ID          string     `json:"id"`
	ResourceID  string     `json:"resourceId"`
	UserID      string     `json:"userId"`
	Date        string     `json:"date"`
	StartTime   string     `json:"startTime"`
	EndTime     string     `json:"endTime"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Purpose     string     `json:"purpose,omitempty"`
	Status      string     `json:"status"`
	Resource    snapshot   `json:"resource"`
	User        snapshot   `json:"user"`
	CancelledBy string     `json:"cancelledBy,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type snapshot struct {
	Name     string `json:"name"`
	Building string `json:"building,omitempty"`
	Category string `json:"category,omitempty"`
	Role     string `json:"role,omitempty"`
}

func toBookingDTO(b application.Booking, loc *time.Location) bookingDTO {
	return bookingDTO{
		ID:          b.ID,
		ResourceID:  b.ResourceID,
		UserID:      b.UserID,
		Date:        b.Date,
		StartTime:   clockOf(b.Start, b.Date, loc),
		EndTime:     clockOf(b.End, b.Date, loc),
		Start:       b.Start,
		End:         b.End,
		Purpose:     b.Purpose,
		Status:      string(b.Status),
		Resource:    snapshot{Name: b.Resource.Name, Building: b.Resource.Building, Category: b.Resource.Category},
		User:        snapshot{Name: b.User.Name, Role: string(b.User.Role)},
		CancelledBy: b.CancelledBy,
		CancelledAt: b.CancelledAt,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func toBookingDTOs(bookings []application.Booking, loc *time.Location) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b, loc))
	}
	return out
}

// clockOf renders t as a time of day on date, using "24:00" for the
// following midnight.
func clockOf(t time.Time, date string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if day, err := availability.DayWindow(date, loc); err == nil && t.Equal(day.End) {
		return "24:00"
	}
	return t.In(loc).Format(availability.ClockLayout)
}

type busyDTO struct {
	BookingID string    `json:"bookingId,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func busyDTOs(busy []availability.Busy) []busyDTO {
	out := make([]busyDTO, 0, len(busy))
	for _, b := range busy {
		out = append(out, busyDTO{BookingID: b.BookingID, Start: b.Start, End: b.End})
	}
	return out
}

type availabilityResponse struct {
	ResourceID string    `json:"resourceId"`
	Date       string    `json:"date"`
	Busy       []busyDTO `json:"busy"`
}

type bookingQuery struct {
	ResourceID string `form:"resourceId"`
	UserID     string `form:"userId"`
	Status     string `form:"status"`
	Date       string `form:"date"`
}

func (q bookingQuery) toQuery() application.BookingQuery {
	return application.BookingQuery{
		ResourceID: q.ResourceID,
		UserID:     q.UserID,
		Status:     lifecycle.Status(q.Status),
		Date:       q.Date,
	}
}
