package availability

import (
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
)

// MaxDuration bounds a service duration; nothing longer fits in a day.
const MaxDuration = 24 * time.Hour

// CheckHorizon returns ErrDateOutOfRange when day falls before today or more
// than maxAdvance days after it, both in loc. maxAdvance 0 disables the upper
// bound.
func CheckHorizon(day, now time.Time, loc *time.Location, maxAdvance int) error {
	dayStart, _ := clock.DayBounds(day, loc)
	today, _ := clock.DayBounds(now, loc)
	if dayStart.Before(today) {
		return ErrDateOutOfRange
	}
	if maxAdvance > 0 {
		y, m, d := today.Date()
		if !dayStart.Before(time.Date(y, m, d+maxAdvance+1, 0, 0, 0, 0, loc)) {
			return ErrDateOutOfRange
		}
	}
	return nil
}

// OnGrid reports whether t is a whole number of steps after open, i.e. one of
// the start times the calculator enumerates.
func OnGrid(t, open clock.TimeOfDay, step time.Duration) bool {
	minutes := int(step / time.Minute)
	if minutes <= 0 {
		return true
	}
	offset := int(t) - int(open)
	return offset%minutes == 0
}
