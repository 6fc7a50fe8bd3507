package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/example/facility-booking/internal/persistence"
)

const userColumns = `id, email, full_name, phone, role, department_code, department_name, batch,
	capabilities, active, password_hash, created_at, updated_at`

func (s *Storage) CreateUser(ctx context.Context, u persistence.User) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.Email, u.FullName, u.Phone, u.Role, u.DepartmentCode, u.DepartmentName, u.Batch,
		nonNil(u.Capabilities), u.Active, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return mapError(err)
}

func (s *Storage) UpdateUser(ctx context.Context, u persistence.User) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET
		email = $2, full_name = $3, phone = $4, role = $5, department_code = $6, department_name = $7,
		batch = $8, capabilities = $9, active = $10, password_hash = $11, updated_at = $12
		WHERE id = $1`,
		u.ID, u.Email, u.FullName, u.Phone, u.Role, u.DepartmentCode, u.DepartmentName,
		u.Batch, nonNil(u.Capabilities), u.Active, u.PasswordHash, u.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, mapError(rows.Err())
}

func scanUser(row pgx.Row) (persistence.User, error) {
	var u persistence.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.DepartmentCode, &u.DepartmentName,
		&u.Batch, &u.Capabilities, &u.Active, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	if len(u.Capabilities) == 0 {
		u.Capabilities = nil
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
