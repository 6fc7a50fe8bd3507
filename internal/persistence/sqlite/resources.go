package sqlite

import (
	"context"

	"github.com/example/facility-booking/internal/persistence"
)

const resourceColumns = `id, name, category, sub_category, capacity, status, building, zone, floor,
	requires_approval, allowed_roles, max_duration_hours, required_capability, created_at, updated_at`

func (s *Storage) CreateResource(ctx context.Context, r persistence.Resource) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Category, r.SubCategory, r.Capacity, r.Status, r.Building, r.Zone, r.Floor,
		boolToInt(r.RequiresApproval), encodeList(r.AllowedRoles), r.MaxDurationHours, r.RequiredCapability,
		toUnix(r.CreatedAt), toUnix(r.UpdatedAt),
	)
	return mapError(err)
}

func (s *Storage) UpdateResource(ctx context.Context, r persistence.Resource) error {
	res, err := s.db.ExecContext(ctx, `UPDATE resources SET
		name = ?, category = ?, sub_category = ?, capacity = ?, status = ?, building = ?, zone = ?, floor = ?,
		requires_approval = ?, allowed_roles = ?, max_duration_hours = ?, required_capability = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.Category, r.SubCategory, r.Capacity, r.Status, r.Building, r.Zone, r.Floor,
		boolToInt(r.RequiresApproval), encodeList(r.AllowedRoles), r.MaxDurationHours, r.RequiredCapability,
		toUnix(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (s *Storage) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	return scanResource(row)
}

func (s *Storage) ListResources(ctx context.Context) ([]persistence.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY name, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var resources []persistence.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

func (s *Storage) DeleteResource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func scanResource(row scanner) (persistence.Resource, error) {
	var (
		r                    persistence.Resource
		requiresApproval     int
		allowedRoles         string
		createdAt, updatedAt int64
	)
	err := row.Scan(&r.ID, &r.Name, &r.Category, &r.SubCategory, &r.Capacity, &r.Status,
		&r.Building, &r.Zone, &r.Floor, &requiresApproval, &allowedRoles, &r.MaxDurationHours,
		&r.RequiredCapability, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Resource{}, mapError(err)
	}
	if r.AllowedRoles, err = decodeList(allowedRoles); err != nil {
		return persistence.Resource{}, err
	}
	r.RequiresApproval = requiresApproval != 0
	r.CreatedAt = fromUnix(createdAt)
	r.UpdatedAt = fromUnix(updatedAt)
	return r, nil
}
