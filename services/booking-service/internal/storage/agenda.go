package storage

import (
	"context"
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

// Agenda lists the non-cancelled reservations starting in [from, to), ordered
// by start time then staff name.
func (s *Store) Agenda(ctx context.Context, from, to time.Time) ([]model.AgendaEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id::text, r.start_time, r.end_time, st.name, sv.name,
			trim(c.first_name || ' ' || c.last_name), c.phone, r.status, r.price_charged::text
		FROM reservations r
		JOIN staff_members st ON st.id = r.staff_id
		JOIN services sv ON sv.id = r.service_id
		JOIN clients c ON c.id = r.client_id
		WHERE r.status <> 'cancelled'
			AND r.start_time >= $1
			AND r.start_time < $2
		ORDER BY r.start_time, st.name
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AgendaEntry{}
	for rows.Next() {
		var (
			e      model.AgendaEntry
			status string
		)
		if err := rows.Scan(&e.ReservationID, &e.Start, &e.End, &e.StaffName, &e.ServiceName,
			&e.ClientName, &e.ClientPhone, &status, &e.PriceCharged); err != nil {
			return nil, err
		}
		e.Status = model.ReservationStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
