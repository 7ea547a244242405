package clock

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay counts minutes after local midnight. 1440 is a valid end of day.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

func (t TimeOfDay) Valid() bool { return t >= 0 && t <= EndOfDay }

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

var timeOfDayLayouts = []string{"15:04", "3:04 PM", "3:04PM", "03:04 PM", "15:04:05"}

// ParseTimeOfDay accepts 24h ("14:30") and 12h ("2:30 PM") forms; "24:00"
// is accepted as EndOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "24:00" {
		return EndOfDay, nil
	}
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// OfTime extracts the wall-clock time of t in loc.
func OfTime(t time.Time, loc *time.Location) TimeOfDay {
	t = t.In(loc)
	return NewTimeOfDay(t.Hour(), t.Minute())
}
