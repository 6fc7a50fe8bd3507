// Package availability resolves booking windows and detects overlapping reservations.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// DateLayout is the civil date format accepted for booking dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the time-of-day format accepted for booking windows.
	ClockLayout = "15:04"
)

var (
	// ErrInvalidRange is returned when an interval does not end strictly after it starts.
	ErrInvalidRange = errors.New("availability: end must be after start")
	// ErrInvalidDate is returned for malformed civil dates.
	ErrInvalidDate = errors.New("availability: invalid date")
	// ErrInvalidClock is returned for malformed time-of-day values.
	ErrInvalidClock = errors.New("availability: invalid time of day")
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval ends strictly after it starts.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Intervals that only touch at a boundary do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Busy is an interval occupied by an active booking.
type Busy struct {
	Interval
	BookingID string
}

// ParseDate parses a civil date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return day, nil
}

// DayWindow returns the interval covering the civil date in loc.
func DayWindow(date string, loc *time.Location) (Interval, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: day, End: day.AddDate(0, 0, 1)}, nil
}

// ResolveWindow turns a civil date plus "HH:MM" start and end times into
// absolute instants in loc. An end of "24:00" denotes the following midnight.
func ResolveWindow(date, start, end string, loc *time.Location) (Interval, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return Interval{}, err
	}
	from, err := clockOffset(start)
	if err != nil {
		return Interval{}, err
	}
	to, err := clockOffset(end)
	if err != nil {
		return Interval{}, err
	}

	window := Interval{Start: atOffset(day, from), End: atOffset(day, to)}
	if !window.Valid() {
		return Interval{}, ErrInvalidRange
	}
	return window, nil
}

// atOffset adds a wall-clock offset to midnight so DST days still land on the
// requested local time.
func atOffset(day time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

// ValidClock reports whether value is an "HH:MM" time of day or "24:00".
func ValidClock(value string) bool {
	_, err := clockOffset(value)
	return err == nil
}

func clockOffset(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// BusyWithin returns the entries of busy that intersect window, sorted by start.
func BusyWithin(busy []Busy, window Interval) []Busy {
	out := make([]Busy, 0, len(busy))
	for _, b := range busy {
		if Overlaps(b.Interval, window) {
			out = append(out, b)
		}
	}
	SortBusy(out)
	return out
}

// Conflicts returns the entries of busy that overlap candidate, sorted by start.
func Conflicts(busy []Busy, candidate Interval) []Busy {
	return BusyWithin(busy, candidate)
}

// SortBusy orders busy intervals by start, then end, then booking id.
func SortBusy(busy []Busy) {
	sort.SliceStable(busy, func(i, j int) bool {
		a, b := busy[i], busy[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.BookingID < b.BookingID
	})
}
