package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/facility-booking/internal/availability"
	"github.com/example/facility-booking/internal/lifecycle"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique identifier or email is taken.
	ErrAlreadyExists = errors.New("application: already exists")

	// ErrInvalidCredentials is returned when no account matches the email and password.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a deactivated user tries to sign in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned for a well-formed token past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionInvalid is returned for malformed, tampered or revoked tokens.
	ErrSessionInvalid = errors.New("application: session invalid")

	// ErrDenied is the sentinel wrapped by every DeniedError.
	ErrDenied = errors.New("application: not authorized")
	// ErrConflict is the sentinel wrapped by every ConflictError.
	ErrConflict = errors.New("application: booking conflict")
	// ErrResourceUnavailable is returned when booking a resource that is not Active.
	ErrResourceUnavailable = errors.New("application: resource unavailable")
	// ErrInvalidTransition is returned for a booking status change the lifecycle forbids.
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	// ErrResourceInUse is returned when deleting a resource that still has active bookings.
	ErrResourceInUse = errors.New("application: resource has active bookings")
	// ErrBusy is returned when the resource could not be locked in time. Callers may retry.
	ErrBusy = errors.New("application: resource busy, retry later")
	// ErrInvalidRange is returned, wrapped in a ValidationError, when end is not after start.
	ErrInvalidRange = availability.ErrInvalidRange
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
	cause       error
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field, msg := range v.FieldErrors {
		fields = append(fields, field+": "+msg)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, "; ")
}

// Unwrap exposes the underlying sentinel, if any, such as ErrInvalidRange.
func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.cause
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// addCause records a field error backed by a sentinel.
func (v *ValidationError) addCause(field, message string, cause error) {
	v.add(field, message)
	if v.cause == nil {
		v.cause = cause
	}
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
	if v.cause == nil {
		v.cause = other.cause
	}
}

// DeniedError is returned when the authorization gate refuses an action.
type DeniedError struct {
	Code   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("not authorized (%s): %s", e.Code, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrDenied
}

// ConflictError is returned when a requested window overlaps active bookings.
type ConflictError struct {
	ResourceID string
	Busy       []availability.Busy
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %s is already booked for %d overlapping interval(s)", e.ResourceID, len(e.Busy))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
