// Package clock holds the calendar arithmetic used by availability and
// booking. Everything here is pure.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant. Intervals that only
// touch (a.End == b.Start) do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Contains reports whether b lies entirely within a.
func (a Interval) Contains(b Interval) bool {
	return !b.Start.Before(a.Start) && !b.End.After(a.End)
}

func (a Interval) Duration() time.Duration { return a.End.Sub(a.Start) }

const dateLayout = "2006-01-02"

// SlotLayout renders slot start times as "9:05 AM".
const SlotLayout = "3:04 PM"

// ParseDate reads a YYYY-MM-DD civil date as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// DayBounds returns local midnight of t's civil date in loc and the following
// local midnight. On DST transition days the span is 23 or 25 hours.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// At places tod on the civil date of day, in loc.
func At(day time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	day = day.In(loc)
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, int(tod), 0, 0, loc)
}

// FormatSlot renders t in loc using SlotLayout.
func FormatSlot(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(SlotLayout)
}
