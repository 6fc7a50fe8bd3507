package testfixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/lifecycle"
	"github.com/example/facility-booking/internal/persistence"
	"github.com/example/facility-booking/internal/persistence/memory"
)

func bookLab(t *testing.T, svc *Services, user persistence.User, start, end string) (application.Booking, error) {
	t.Helper()
	return svc.Bookings.CreateBooking(context.Background(), application.CreateBookingParams{
		Principal: PrincipalFor(user),
		Input: application.BookingInput{
			ResourceID: "lab-1",
			Date:       FutureDate(1),
			StartTime:  start,
			EndTime:    end,
			Purpose:    "fixture",
		},
	})
}

func TestServiceFactoryBuildsDeterministicServices(t *testing.T) {
	factory := NewServiceFactory()
	store := memory.New()
	campus := Campus()
	Seed(t, store, campus)
	svc := factory.Build(t, ServiceDeps{Store: store})

	booking, err := bookLab(t, svc, campus.Users[1], "09:00", "10:00")
	if err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}
	if booking.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", booking.ID)
	}
	if !booking.CreatedAt.Equal(ReferenceTime()) {
		t.Fatalf("expected timestamp %v, got %v", ReferenceTime(), booking.CreatedAt)
	}
	if booking.Status != lifecycle.StatusConfirmed {
		t.Fatalf("expected Confirmed, got %s", booking.Status)
	}

	factory.Clock.Advance(48 * time.Hour)
	got, err := svc.Bookings.GetBooking(context.Background(), PrincipalFor(campus.Users[1]), booking.ID)
	if err != nil {
		t.Fatalf("GetBooking returned error: %v", err)
	}
	if got.Status != lifecycle.StatusCompleted {
		t.Fatalf("expected Completed after the window ended, got %s", got.Status)
	}
}

func TestServiceFactoryLoginUsesPlainPasswords(t *testing.T) {
	store := memory.New()
	Seed(t, store, Campus())
	svc := NewServiceFactory().Build(t, ServiceDeps{Store: store})

	result, err := svc.Auth.Authenticate(context.Background(), application.AuthenticateParams{
		Email:    "student@campus.edu",
		Password: DefaultPassword,
	})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	principal, err := svc.Auth.ValidateSession(context.Background(), result.Session.Token)
	if err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	if principal.UserID != "student" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestSQLiteStoreRejectsOverlap(t *testing.T) {
	store := NewSQLiteStore(t)
	campus := Campus()
	Seed(t, store, campus)
	svc := NewServiceFactory().Build(t, ServiceDeps{Store: store})

	if _, err := bookLab(t, svc, campus.Users[1], "09:00", "11:00"); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := bookLab(t, svc, campus.Users[2], "10:00", "12:00")
	var conflict *application.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflict.Busy) != 1 {
		t.Fatalf("expected one busy interval, got %d", len(conflict.Busy))
	}
	if _, err := bookLab(t, svc, campus.Users[2], "11:00", "12:00"); err != nil {
		t.Fatalf("touching booking should be admitted: %v", err)
	}
}

func TestCampusAuditoriumNeedsCapability(t *testing.T) {
	store := memory.New()
	campus := Campus()
	Seed(t, store, campus)
	svc := NewServiceFactory().Build(t, ServiceDeps{Store: store})

	input := application.BookingInput{ResourceID: "auditorium", Date: FutureDate(3), StartTime: "14:00", EndTime: "16:00"}
	_, err := svc.Bookings.CreateBooking(context.Background(), application.CreateBookingParams{
		Principal: PrincipalFor(campus.Users[1]),
		Input:     input,
	})
	if !errors.Is(err, application.ErrDenied) {
		t.Fatalf("expected a denial for the student, got %v", err)
	}

	booking, err := svc.Bookings.CreateBooking(context.Background(), application.CreateBookingParams{
		Principal: PrincipalFor(campus.Users[2]),
		Input:     input,
	})
	if err != nil {
		t.Fatalf("faculty booking: %v", err)
	}
	if booking.Status != lifecycle.StatusPending {
		t.Fatalf("expected Pending for an approval resource, got %s", booking.Status)
	}
}
