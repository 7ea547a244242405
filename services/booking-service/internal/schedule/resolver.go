// Package schedule answers "when does this staff member work on this day".
package schedule

import (
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

type key struct {
	staffID string
	weekday clock.Weekday
}

// Resolver indexes the work schedule rows loaded for a query. A missing entry
// means the member is off; there is no default shift.
type Resolver struct {
	rows map[key]model.WorkSchedule
}

// NewResolver keeps the first row per (staff, weekday) and ignores invalid
// rows (unknown weekday, empty or inverted range).
func NewResolver(rows []model.WorkSchedule) *Resolver {
	r := &Resolver{rows: make(map[key]model.WorkSchedule, len(rows))}
	for _, row := range rows {
		if !row.Weekday.Valid() || !row.Start.Valid() || !row.End.Valid() || row.Start >= row.End {
			continue
		}
		k := key{staffID: row.StaffID, weekday: row.Weekday}
		if _, dup := r.rows[k]; dup {
			continue
		}
		r.rows[k] = row
	}
	return r
}

// For returns the shift of staffID on weekday, if any.
func (r *Resolver) For(staffID string, weekday clock.Weekday) (model.WorkSchedule, bool) {
	row, ok := r.rows[key{staffID: staffID, weekday: weekday}]
	return row, ok
}

// Window anchors the member's shift onto the civil date of day.
func (r *Resolver) Window(staffID string, day time.Time, loc *time.Location) (clock.Interval, bool) {
	row, ok := r.For(staffID, clock.ISOWeekday(day, loc))
	if !ok {
		return clock.Interval{}, false
	}
	return clock.Interval{
		Start: clock.At(day, row.Start, loc),
		End:   clock.At(day, row.End, loc),
	}, true
}

// Working filters staff down to those with a shift on weekday, keeping order.
func (r *Resolver) Working(staff []model.StaffMember, weekday clock.Weekday) []model.StaffMember {
	out := make([]model.StaffMember, 0, len(staff))
	for _, s := range staff {
		if _, ok := r.For(s.ID, weekday); ok {
			out = append(out, s)
		}
	}
	return out
}
