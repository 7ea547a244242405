// Package storage is the Postgres implementation of the availability,
// booking, catalog and gift card stores.
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jvstudio/salonbook/libs/db"
	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/booking"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

type Store struct {
	db db.TxBeginner
}

func New(conn db.TxBeginner) *Store {
	return &Store{db: conn}
}

func (s *Store) Candidates(ctx context.Context, sel model.StaffSelector) ([]model.StaffMember, error) {
	return candidates(ctx, s.db, sel, false)
}

func (s *Store) Schedules(ctx context.Context, staffIDs []string, weekday clock.Weekday) ([]model.WorkSchedule, error) {
	return schedules(ctx, s.db, staffIDs, weekday)
}

func (s *Store) Conflicts(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Conflict, error) {
	return conflicts(ctx, s.db, staffIDs, from, to)
}

// InTx runs fn in a read-committed transaction.
func (s *Store) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	return db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

const staffColumns = `id::text, name, role, is_active, performs_services`

// candidates loads the eligible staff for sel. With lock set the rows are
// locked in id order, the same order every committer uses, then sorted by
// name for assignment.
func candidates(ctx context.Context, q db.DBTX, sel model.StaffSelector, lock bool) ([]model.StaffMember, error) {
	suffix := ""
	if lock {
		suffix = " FOR UPDATE"
	}

	if !sel.IsAny() {
		id := sel.StaffID()
		if _, err := uuid.Parse(id); err != nil {
			return nil, availability.ErrUnknownStaff
		}
		var m model.StaffMember
		err := q.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff_members WHERE id = $1`+suffix, id).
			Scan(&m.ID, &m.Name, &m.Role, &m.Active, &m.PerformsServices)
		if db.IsNotFound(err) {
			return nil, availability.ErrUnknownStaff
		}
		if err != nil {
			return nil, err
		}
		if !m.Eligible() {
			return nil, availability.ErrUnknownStaff
		}
		return []model.StaffMember{m}, nil
	}

	order := " ORDER BY name, id"
	if lock {
		order = " ORDER BY id"
	}
	rows, err := q.Query(ctx, `SELECT `+staffColumns+` FROM staff_members
		WHERE is_active AND performs_services`+order+suffix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StaffMember
	for rows.Next() {
		var m model.StaffMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.Active, &m.PerformsServices); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if lock {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Name != out[j].Name {
				return out[i].Name < out[j].Name
			}
			return out[i].ID < out[j].ID
		})
	}
	return out, nil
}

func schedules(ctx context.Context, q db.DBTX, staffIDs []string, weekday clock.Weekday) ([]model.WorkSchedule, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `
		SELECT staff_id::text, iso_weekday, start_minute, end_minute
		FROM work_schedules
		WHERE staff_id = ANY($1::uuid[]) AND iso_weekday = $2
		ORDER BY staff_id, id
	`, staffIDs, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkSchedule
	for rows.Next() {
		var (
			ws         model.WorkSchedule
			day        int
			start, end int
		)
		if err := rows.Scan(&ws.StaffID, &day, &start, &end); err != nil {
			return nil, err
		}
		ws.Weekday = clock.Weekday(day)
		ws.Start = clock.TimeOfDay(start)
		ws.End = clock.TimeOfDay(end)
		out = append(out, ws)
	}
	return out, rows.Err()
}

func conflicts(ctx context.Context, q db.DBTX, staffIDs []string, from, to time.Time) ([]model.Conflict, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `
		SELECT staff_id::text, start_time, end_time
		FROM reservations
		WHERE staff_id = ANY($1::uuid[])
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
		ORDER BY staff_id, start_time
	`, staffIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Conflict
	for rows.Next() {
		var c model.Conflict
		if err := rows.Scan(&c.StaffID, &c.Start, &c.End); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan conflicts: %w", err)
	}
	return out, nil
}
