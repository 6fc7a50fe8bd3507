package application

import (
	"context"
	"time"

	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/events"
)

// EventPublisher receives booking ledger changes for downstream consumers
// such as analytics. Publication is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event events.BookingEvent) error
}

// AvailabilityCache stores advisory busy intervals per resource and date.
// Readers take a Version before loading the ledger and pass it to Set, which
// discards the entry if an Invalidate landed in between.
type AvailabilityCache interface {
	Get(ctx context.Context, resourceID, date string) ([]availability.Busy, bool, error)
	Version(ctx context.Context, resourceID, date string) (uint64, error)
	Set(ctx context.Context, resourceID, date string, version uint64, busy []availability.Busy) error
	Invalidate(ctx context.Context, resourceID, date string) error
}

// Metrics records admission engine measurements.
type Metrics interface {
	ObserveAdmission(outcome string, elapsed time.Duration)
	ObserveLockWait(elapsed time.Duration)
	IncTransition(status string)
}

// Admission outcomes reported to Metrics.
const (
	OutcomeAdmitted    = "admitted"
	OutcomeConflict    = "conflict"
	OutcomeDenied      = "denied"
	OutcomeUnavailable = "unavailable"
	OutcomeBusy        = "busy"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

type nopMetrics struct{}

func (nopMetrics) ObserveAdmission(string, time.Duration) {}
func (nopMetrics) ObserveLockWait(time.Duration)          {}
func (nopMetrics) IncTransition(string)                   {}

func admissionOutcome(err error) string {
	switch ErrorKind(err) {
	case "":
		return OutcomeAdmitted
	case "conflict":
		return OutcomeConflict
	case "authorization_error":
		return OutcomeDenied
	case "resource_unavailable":
		return OutcomeUnavailable
	case "busy":
		return OutcomeBusy
	case "validation_error", "invalid_range", "not_found":
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
