package clock

import (
	"fmt"
	"time"
)

// Weekday is the ISO 8601 day of week: Monday=1 through Sunday=7. It is the
// only convention stored in the database. time.Weekday (Sunday=0) is
// converted here and nowhere else.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ISOWeekday returns the ISO day of week of t's civil date in loc.
func ISOWeekday(t time.Time, loc *time.Location) Weekday {
	return FromStd(t.In(loc).Weekday())
}

func FromStd(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekday(d)
}

func (w Weekday) Std() time.Weekday {
	if w == Sunday {
		return time.Sunday
	}
	return time.Weekday(w)
}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return w.Std().String()
}
