// Package lifecycle holds the booking state machine.
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
)

// ErrInvalidTransition is returned when a status change is not permitted.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCancelled: {},
	StatusCompleted: {},
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return !ok || len(next) == 0
}

// IsActive reports whether a booking in s occupies its time window.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) String() string {
	return string(s)
}

// Parse converts a string into a Status.
func Parse(value string) (Status, error) {
	status := Status(value)
	if !status.IsValid() {
		return "", fmt.Errorf("lifecycle: unknown status %q", value)
	}
	return status, nil
}

// InitialStatus is the status a newly admitted booking starts in.
func InitialStatus(requiresApproval bool) Status {
	if requiresApproval {
		return StatusPending
	}
	return StatusConfirmed
}

// Effective derives the status a reader observes at now. Confirmed bookings
// whose window has ended read as Completed; Pending bookings that were never
// approved before their end read as Cancelled.
func Effective(stored Status, end, now time.Time) Status {
	if end.IsZero() || now.Before(end) {
		return stored
	}
	switch stored {
	case StatusConfirmed:
		return StatusCompleted
	case StatusPending:
		return StatusCancelled
	default:
		return stored
	}
}

// Cancel computes the result of a cancellation request against current.
// Cancelling an already cancelled booking reports changed=false and no error.
func Cancel(current Status) (next Status, changed bool, err error) {
	if current == StatusCancelled {
		return current, false, nil
	}
	if !current.CanTransitionTo(StatusCancelled) {
		return current, false, fmt.Errorf("%w: cannot cancel a %s booking", ErrInvalidTransition, current)
	}
	return StatusCancelled, true, nil
}

// Approve computes the result of an approval against current.
func Approve(current Status) (Status, error) {
	if current != StatusPending {
		return current, fmt.Errorf("%w: cannot approve a %s booking", ErrInvalidTransition, current)
	}
	return StatusConfirmed, nil
}
