package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed: field: invalid" {
		t.Fatalf("expected field detail for populated error, got %q", got)
	}

	sorted := &ValidationError{FieldErrors: map[string]string{"b": "two", "a": "one"}}
	if got := sorted.Error(); got != "validation failed: a: one; b: two" {
		t.Fatalf("expected fields in sorted order, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	rangeErr := &ValidationError{}
	rangeErr.addCause("endTime", "end must be after start", ErrInvalidRange)

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{rangeErr, "invalid_range"},
		{&ValidationError{FieldErrors: map[string]string{"name": "required"}}, "validation_error"},
		{ErrInvalidCredentials, "invalid_credentials"},
		{fmt.Errorf("%w: bad signature", ErrSessionInvalid), "session_invalid"},
		{ErrSessionExpired, "session_expired"},
		{ErrAccountDisabled, "account_disabled"},
		{&DeniedError{Code: "not_owner"}, "authorization_error"},
		{&ConflictError{ResourceID: "lab-1"}, "conflict"},
		{fmt.Errorf("%w: maintenance", ErrResourceUnavailable), "resource_unavailable"},
		{ErrInvalidTransition, "invalid_transition"},
		{ErrResourceInUse, "resource_in_use"},
		{ErrBusy, "busy"},
		{ErrNotFound, "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{errors.New("disk on fire"), "internal_error"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
