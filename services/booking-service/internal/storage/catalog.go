package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

const serviceSelect = `
	SELECT s.id::text, s.name, s.description, s.duration_minutes, s.price::text, s.is_active,
		COALESCE(s.category_id, 0), COALESCE(c.name, '')
	FROM services s
	LEFT JOIN service_categories c ON c.id = s.category_id`

func scanService(row pgx.Row) (model.Service, error) {
	var svc model.Service
	err := row.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.DurationMinutes, &svc.Price, &svc.Active,
		&svc.CategoryID, &svc.CategoryName)
	return svc, err
}

// Services lists active services ordered by name. A categoryID of 0 means
// every category.
func (s *Store) Services(ctx context.Context, categoryID int64) ([]model.Service, error) {
	if categoryID > 0 {
		return s.queryServices(ctx, serviceSelect+` WHERE s.is_active AND s.category_id = $1 ORDER BY s.name`, categoryID)
	}
	return s.queryServices(ctx, serviceSelect+` WHERE s.is_active ORDER BY s.name`)
}

// ServicesInCategory lists active services whose category name contains
// title, ignoring case.
func (s *Store) ServicesInCategory(ctx context.Context, title string) ([]model.Service, error) {
	return s.queryServices(ctx, serviceSelect+`
		WHERE s.is_active AND c.name ILIKE '%' || $1 || '%'
		ORDER BY s.name`, title)
}

func (s *Store) queryServices(ctx context.Context, sql string, args ...any) ([]model.Service, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description
		FROM service_categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Staff lists the members clients can book, ordered by name.
func (s *Store) Staff(ctx context.Context) ([]model.StaffMember, error) {
	return candidates(ctx, s.db, model.AnyStaff, false)
}
