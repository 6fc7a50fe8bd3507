package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/example/facility-booking/internal/persistence"
)

const bookingColumns = `id, resource_id, user_id, booking_date, start_at, end_at, purpose, status,
	resource_name, resource_building, resource_category, user_name, user_role,
	cancelled_by, cancelled_at, created_at, updated_at`

// CreateBooking serializes admissions per resource with a transaction-scoped
// advisory lock, then checks for overlap and inserts. The exclusion
// constraint on bookings rejects any overlap that slips past the check.
func (s *Storage) CreateBooking(ctx context.Context, b persistence.Booking) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, b.ResourceID); err != nil {
			return err
		}

		var overlapping bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE resource_id = $1 AND status = ANY($2) AND start_at < $3 AND end_at > $4
		)`, b.ResourceID, persistence.ActiveStatuses, b.End, b.Start).Scan(&overlapping)
		if err != nil {
			return err
		}
		if overlapping {
			return persistence.ErrOverlap
		}

		_, err = tx.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			b.ID, b.ResourceID, b.UserID, b.Date, b.Start, b.End, b.Purpose, b.Status,
			b.ResourceName, b.ResourceBuilding, b.ResourceCategory, b.UserName, b.UserRole,
			b.CancelledBy, b.CancelledAt, b.CreatedAt, b.UpdatedAt)
		return err
	})
	return mapError(err)
}

func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (s *Storage) ListBookings(ctx context.Context, f persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.ResourceID != "" {
		clauses = append(clauses, "resource_id = "+arg(f.ResourceID))
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = "+arg(f.UserID))
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status = ANY("+arg(f.Statuses)+")")
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "start_at < "+arg(f.To))
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "end_at > "+arg(f.From))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, mapError(rows.Err())
}

func (s *Storage) UpdateBookingStatus(ctx context.Context, change persistence.StatusChange) (persistence.Booking, error) {
	var cancelledBy any
	if change.Cancels() {
		cancelledBy = change.By
	}
	updated, err := scanBooking(s.pool.QueryRow(ctx, `UPDATE bookings SET
			status = $3,
			updated_at = $4,
			cancelled_at = CASE WHEN $5::text IS NULL THEN cancelled_at ELSE $4 END,
			cancelled_by = COALESCE($5::text, cancelled_by)
		WHERE id = $1 AND status = $2
		RETURNING `+bookingColumns,
		change.BookingID, change.From, change.To, change.At, cancelledBy))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Booking{}, err
	}

	// No row matched: either the booking is missing or its status moved on.
	current, getErr := s.GetBooking(ctx, change.BookingID)
	if getErr != nil {
		return persistence.Booking{}, getErr
	}
	return current, persistence.ErrStale
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var b persistence.Booking
	err := row.Scan(&b.ID, &b.ResourceID, &b.UserID, &b.Date, &b.Start, &b.End, &b.Purpose, &b.Status,
		&b.ResourceName, &b.ResourceBuilding, &b.ResourceCategory, &b.UserName, &b.UserRole,
		&b.CancelledBy, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	b.Start = b.Start.UTC()
	b.End = b.End.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	if b.CancelledAt != nil {
		at := b.CancelledAt.UTC()
		b.CancelledAt = &at
	}
	return b, nil
}
