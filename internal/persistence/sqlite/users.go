package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/facility-booking/internal/persistence"
)

const userColumns = `id, email, full_name, phone, role, department_code, department_name, batch,
	capabilities, active, password_hash, created_at, updated_at`

func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FullName, user.Phone, user.Role,
		user.DepartmentCode, user.DepartmentName, user.Batch,
		encodeList(user.Capabilities), boolToInt(user.Active), user.PasswordHash,
		toUnix(user.CreatedAt), toUnix(user.UpdatedAt),
	)
	return mapError(err)
}

func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET
		email = ?, full_name = ?, phone = ?, role = ?, department_code = ?, department_name = ?,
		batch = ?, capabilities = ?, active = ?, password_hash = ?, updated_at = ?
		WHERE id = ?`,
		user.Email, user.FullName, user.Phone, user.Role, user.DepartmentCode, user.DepartmentName,
		user.Batch, encodeList(user.Capabilities), boolToInt(user.Active), user.PasswordHash,
		toUnix(user.UpdatedAt), user.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUser(row)
}

func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (persistence.User, error) {
	var (
		user                 persistence.User
		capabilities         string
		active               int
		createdAt, updatedAt int64
	)
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.Phone, &user.Role,
		&user.DepartmentCode, &user.DepartmentName, &user.Batch,
		&capabilities, &active, &user.PasswordHash, &createdAt, &updatedAt)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	if user.Capabilities, err = decodeList(capabilities); err != nil {
		return persistence.User{}, err
	}
	user.Active = active != 0
	user.CreatedAt = fromUnix(createdAt)
	user.UpdatedAt = fromUnix(updatedAt)
	return user, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
