// Package events publishes booking ledger changes to downstream consumers.
package events

import (
	"context"
	"time"
)

// Type names a booking ledger change.
type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
	BookingApproved  Type = "booking.approved"
	BookingCompleted Type = "booking.completed"
	BookingLapsed    Type = "booking.lapsed"
)

// BookingFields is the booking payload carried by an event.
type BookingFields struct {
	BookingID    string    `json:"booking_id"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	Category     string    `json:"category,omitempty"`
	UserID       string    `json:"user_id"`
	UserRole     string    `json:"user_role,omitempty"`
	Status       string    `json:"status"`
	Date         string    `json:"date"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	// ActorID is the user who caused the change; empty for system transitions.
	ActorID string `json:"actor_id,omitempty"`
}

// BookingEvent is the message published for every ledger change.
type BookingEvent struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	BookingFields
}

// NewBookingEvent stamps fields with an event id, type and time.
func NewBookingEvent(eventType Type, id string, at time.Time, fields BookingFields) BookingEvent {
	return BookingEvent{ID: id, Type: eventType, OccurredAt: at.UTC(), BookingFields: fields}
}

// Key partitions events by resource so consumers see one resource's changes in order.
func (e BookingEvent) Key() string {
	return e.ResourceID
}

// Publisher delivers booking events.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, BookingEvent) error { return nil }
func (Noop) Close() error                                { return nil }
