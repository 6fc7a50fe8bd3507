package persistence

import "slices"

// Matches reports whether b satisfies f. Backends that filter in memory use it.
func (f BookingFilter) Matches(b Booking) bool {
	if f.ResourceID != "" && b.ResourceID != f.ResourceID {
		return false
	}
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status) {
		return false
	}
	if !f.To.IsZero() && !b.Start.Before(f.To) {
		return false
	}
	if !f.From.IsZero() && !f.From.Before(b.End) {
		return false
	}
	return true
}
