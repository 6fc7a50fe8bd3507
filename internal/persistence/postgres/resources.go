package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/example/facility-booking/internal/persistence"
)

const resourceColumns = `id, name, category, sub_category, capacity, status, building, zone, floor,
	requires_approval, allowed_roles, max_duration_hours, required_capability, created_at, updated_at`

func (s *Storage) CreateResource(ctx context.Context, r persistence.Resource) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO resources (`+resourceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.Name, r.Category, r.SubCategory, r.Capacity, r.Status, r.Building, r.Zone, r.Floor,
		r.RequiresApproval, nonNil(r.AllowedRoles), r.MaxDurationHours, r.RequiredCapability, r.CreatedAt, r.UpdatedAt)
	return mapError(err)
}

func (s *Storage) UpdateResource(ctx context.Context, r persistence.Resource) error {
	tag, err := s.pool.Exec(ctx, `UPDATE resources SET
		name = $2, category = $3, sub_category = $4, capacity = $5, status = $6, building = $7, zone = $8,
		floor = $9, requires_approval = $10, allowed_roles = $11, max_duration_hours = $12,
		required_capability = $13, updated_at = $14
		WHERE id = $1`,
		r.ID, r.Name, r.Category, r.SubCategory, r.Capacity, r.Status, r.Building, r.Zone,
		r.Floor, r.RequiresApproval, nonNil(r.AllowedRoles), r.MaxDurationHours, r.RequiredCapability, r.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Storage) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	return scanResource(s.pool.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
}

func (s *Storage) ListResources(ctx context.Context) ([]persistence.Resource, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY name, id`)
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
	return resources, mapError(rows.Err())
}

func (s *Storage) DeleteResource(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanResource(row pgx.Row) (persistence.Resource, error) {
	var r persistence.Resource
	err := row.Scan(&r.ID, &r.Name, &r.Category, &r.SubCategory, &r.Capacity, &r.Status, &r.Building,
		&r.Zone, &r.Floor, &r.RequiresApproval, &r.AllowedRoles, &r.MaxDurationHours, &r.RequiredCapability,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return persistence.Resource{}, mapError(err)
	}
	if len(r.AllowedRoles) == 0 {
		r.AllowedRoles = nil
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}
