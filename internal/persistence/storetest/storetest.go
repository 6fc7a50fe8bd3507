// Package storetest holds a behavioural test suite every storage backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/facility-booking/internal/persistence"
)

// Factory returns a fresh, migrated store.
type Factory func(t *testing.T) persistence.Store

var base = time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC)

// Run exercises the repository contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("resources", func(t *testing.T) { testResources(t, newStore(t)) })
	t.Run("booking overlap", func(t *testing.T) { testBookingOverlap(t, newStore(t)) })
	t.Run("booking listing", func(t *testing.T) { testBookingListing(t, newStore(t)) })
	t.Run("status change", func(t *testing.T) { testStatusChange(t, newStore(t)) })
	t.Run("concurrent inserts", func(t *testing.T) { testConcurrentInserts(t, newStore(t)) })
}

func sampleBooking(id, resourceID string, startHour, endHour int) persistence.Booking {
	return persistence.Booking{
		ID:               id,
		ResourceID:       resourceID,
		UserID:           "u1",
		Date:             base.Format("2006-01-02"),
		Start:            base.Add(time.Duration(startHour-9) * time.Hour),
		End:              base.Add(time.Duration(endHour-9) * time.Hour),
		Purpose:          "lab session",
		Status:           "Confirmed",
		ResourceName:     "Lab 1",
		ResourceBuilding: "Block A",
		ResourceCategory: "Lab",
		UserName:         "Ann",
		UserRole:         "Faculty",
		CreatedAt:        base.Add(-24 * time.Hour),
		UpdatedAt:        base.Add(-24 * time.Hour),
	}
}

func testUsers(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	user := persistence.User{
		ID:           "u1",
		Email:        "ann@example.edu",
		FullName:     "Ann",
		Role:         "Faculty",
		Capabilities: []string{"book_labs"},
		Active:       true,
		PasswordHash: "hash",
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	dup := user
	dup.ID = "u2"
	dup.Email = "ANN@example.edu"
	assert.ErrorIs(t, store.CreateUser(ctx, dup), persistence.ErrDuplicate)

	got, err := store.GetUserByEmail(ctx, "Ann@Example.edu")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, []string{"book_labs"}, got.Capabilities)
	assert.True(t, got.CreatedAt.Equal(base))

	got.Active = false
	got.Capabilities = nil
	require.NoError(t, store.UpdateUser(ctx, got))

	got, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Empty(t, got.Capabilities)

	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testResources(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	res := persistence.Resource{
		ID:               "lab-1",
		Name:             "Lab 1",
		Category:         "Lab",
		Capacity:         30,
		Status:           "Active",
		Building:         "Block A",
		Floor:            "2",
		AllowedRoles:     []string{"Faculty", "Staff"},
		MaxDurationHours: 2,
		CreatedAt:        base,
		UpdatedAt:        base,
	}
	require.NoError(t, store.CreateResource(ctx, res))
	assert.ErrorIs(t, store.CreateResource(ctx, res), persistence.ErrDuplicate)

	got, err := store.GetResource(ctx, "lab-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Faculty", "Staff"}, got.AllowedRoles)
	assert.Equal(t, 2.0, got.MaxDurationHours)

	got.Status = "Maintenance"
	require.NoError(t, store.UpdateResource(ctx, got))
	got, err = store.GetResource(ctx, "lab-1")
	require.NoError(t, err)
	assert.Equal(t, "Maintenance", got.Status)

	assert.ErrorIs(t, store.UpdateResource(ctx, persistence.Resource{ID: "nope"}), persistence.ErrNotFound)

	list, err := store.ListResources(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteResource(ctx, "lab-1"))
	assert.ErrorIs(t, store.DeleteResource(ctx, "lab-1"), persistence.ErrNotFound)
}

func testBookingOverlap(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateBooking(ctx, sampleBooking("b1", "lab-1", 9, 10)))

	assert.ErrorIs(t, store.CreateBooking(ctx, sampleBooking("b2", "lab-1", 9, 11)), persistence.ErrOverlap)
	require.NoError(t, store.CreateBooking(ctx, sampleBooking("b3", "lab-1", 10, 11)), "touching boundary")
	require.NoError(t, store.CreateBooking(ctx, sampleBooking("b4", "lab-2", 9, 10)), "other resource")

	_, err := store.UpdateBookingStatus(ctx, persistence.StatusChange{BookingID: "b1", From: "Confirmed", To: "Cancelled", At: base, By: "u1"})
	require.NoError(t, err)
	require.NoError(t, store.CreateBooking(ctx, sampleBooking("b5", "lab-1", 9, 10)), "cancelled bookings free the window")

	assert.ErrorIs(t, store.CreateBooking(ctx, sampleBooking("b5", "lab-9", 9, 10)), persistence.ErrDuplicate)
}

func testBookingListing(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateBooking(ctx, sampleBooking("late", "lab-1", 14, 15)))
	require.NoError(t, store.CreateBooking(ctx, sampleBooking("early", "lab-1", 9, 10)))
	other := sampleBooking("other", "lab-2", 11, 12)
	other.UserID = "u2"
	require.NoError(t, store.CreateBooking(ctx, other))

	got, err := store.ListBookings(ctx, persistence.BookingFilter{ResourceID: "lab-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "late", got[1].ID)
	assert.Equal(t, "Lab 1", got[0].ResourceName)
	assert.True(t, got[0].Start.Equal(base))

	got, err = store.ListBookings(ctx, persistence.BookingFilter{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].ID)

	got, err = store.ListBookings(ctx, persistence.BookingFilter{From: base.Add(30 * time.Minute), To: base.Add(5 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 2, "late only touches the window end")
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "other", got[1].ID)

	got, err = store.ListBookings(ctx, persistence.BookingFilter{From: base.Add(time.Hour), To: base.Add(5 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 1, "bookings touching either edge are outside the window")
	assert.Equal(t, "other", got[0].ID)

	got, err = store.ListBookings(ctx, persistence.BookingFilter{From: base.Add(30 * time.Minute), To: base.Add(5*time.Hour + time.Minute)})
	require.NoError(t, err)
	require.Len(t, got, 3)

	got, err = store.ListBookings(ctx, persistence.BookingFilter{Statuses: []string{"Pending"}})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testStatusChange(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	pending := sampleBooking("b1", "lab-1", 9, 10)
	pending.Status = "Pending"
	require.NoError(t, store.CreateBooking(ctx, pending))

	updated, err := store.UpdateBookingStatus(ctx, persistence.StatusChange{BookingID: "b1", From: "Pending", To: "Confirmed", At: base})
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", updated.Status)
	assert.Nil(t, updated.CancelledAt)

	_, err = store.UpdateBookingStatus(ctx, persistence.StatusChange{BookingID: "b1", From: "Pending", To: "Cancelled", At: base})
	assert.ErrorIs(t, err, persistence.ErrStale)

	cancelledAt := base.Add(time.Minute)
	updated, err = store.UpdateBookingStatus(ctx, persistence.StatusChange{BookingID: "b1", From: "Confirmed", To: "Cancelled", At: cancelledAt, By: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", updated.Status)
	require.NotNil(t, updated.CancelledAt)
	assert.True(t, updated.CancelledAt.Equal(cancelledAt))
	assert.Equal(t, "admin", updated.CancelledBy)

	_, err = store.UpdateBookingStatus(ctx, persistence.StatusChange{BookingID: "missing", From: "Pending", To: "Confirmed", At: base})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testConcurrentInserts(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	const n = 16

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		overlaps   int
		unexpected []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.CreateBooking(ctx, sampleBooking(fmt.Sprintf("c%d", i), "lab-1", 9, 10))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, persistence.ErrOverlap):
				overlaps++
			default:
				unexpected = append(unexpected, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, unexpected)
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, overlaps)
}
