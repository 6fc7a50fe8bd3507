package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/facility-booking/internal/persistence"
)

const bookingColumns = `id, resource_id, user_id, booking_date, start_at, end_at, purpose, status,
	resource_name, resource_building, resource_category, user_name, user_role,
	cancelled_by, cancelled_at, created_at, updated_at`

// CreateBooking checks for overlap and inserts inside one immediate
// transaction, which holds the database write lock for its whole duration.
func (s *Storage) CreateBooking(ctx context.Context, b persistence.Booking) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var overlapping int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM bookings
			WHERE resource_id = ? AND status IN (?, ?) AND start_at < ? AND end_at > ?`,
			b.ResourceID, persistence.ActiveStatuses[0], persistence.ActiveStatuses[1],
			toUnix(b.End), toUnix(b.Start),
		).Scan(&overlapping)
		if err != nil {
			return mapError(err)
		}
		if overlapping > 0 {
			return persistence.ErrOverlap
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.ResourceID, b.UserID, b.Date, toUnix(b.Start), toUnix(b.End), b.Purpose, b.Status,
			b.ResourceName, b.ResourceBuilding, b.ResourceCategory, b.UserName, b.UserRole,
			b.CancelledBy, nullableUnix(b.CancelledAt), toUnix(b.CreatedAt), toUnix(b.UpdatedAt),
		)
		return mapError(err)
	})
}

func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

func (s *Storage) ListBookings(ctx context.Context, f persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ResourceID != "" {
		clauses = append(clauses, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(f.Statuses)), ", ")+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "start_at < ?")
		args = append(args, toUnix(f.To))
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "end_at > ?")
		args = append(args, toUnix(f.From))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return bookings, rows.Err()
}

func (s *Storage) UpdateBookingStatus(ctx context.Context, change persistence.StatusChange) (persistence.Booking, error) {
	var updated persistence.Booking
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, change.BookingID))
		if err != nil {
			return err
		}
		if current.Status != change.From {
			updated = current
			return persistence.ErrStale
		}

		var cancelledAt any
		cancelledBy := current.CancelledBy
		if change.Cancels() {
			cancelledAt = toUnix(change.At)
			cancelledBy = change.By
		} else {
			cancelledAt = nullableUnix(current.CancelledAt)
		}

		_, err = tx.ExecContext(ctx, `UPDATE bookings SET status = ?, cancelled_by = ?, cancelled_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			change.To, cancelledBy, cancelledAt, toUnix(change.At), change.BookingID, change.From)
		if err != nil {
			return mapError(err)
		}

		updated, err = scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, change.BookingID))
		return err
	})
	return updated, err
}

func scanBooking(row scanner) (persistence.Booking, error) {
	var (
		b                                persistence.Booking
		start, end, createdAt, updatedAt int64
		cancelledAt                      sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.ResourceID, &b.UserID, &b.Date, &start, &end, &b.Purpose, &b.Status,
		&b.ResourceName, &b.ResourceBuilding, &b.ResourceCategory, &b.UserName, &b.UserRole,
		&b.CancelledBy, &cancelledAt, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	b.Start = fromUnix(start)
	b.End = fromUnix(end)
	b.CreatedAt = fromUnix(createdAt)
	b.UpdatedAt = fromUnix(updatedAt)
	if cancelledAt.Valid {
		at := fromUnix(cancelledAt.Int64)
		b.CancelledAt = &at
	}
	return b, nil
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toUnix(*t)
}
