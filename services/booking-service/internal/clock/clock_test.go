package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := Interval{Start: base, End: base.Add(30 * time.Minute)}

	touching := Interval{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)}
	assert.False(t, a.Overlaps(touching))
	assert.False(t, touching.Overlaps(a))

	inside := Interval{Start: base.Add(10 * time.Minute), End: base.Add(20 * time.Minute)}
	assert.True(t, a.Overlaps(inside))
	assert.True(t, inside.Overlaps(a))

	straddling := Interval{Start: base.Add(-5 * time.Minute), End: base.Add(5 * time.Minute)}
	assert.True(t, a.Overlaps(straddling))
}

func TestContains(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	shift := Interval{Start: base, End: base.Add(8 * time.Hour)}
	assert.True(t, shift.Contains(Interval{Start: base, End: base.Add(30 * time.Minute)}))
	assert.True(t, shift.Contains(Interval{Start: base.Add(7*time.Hour + 30*time.Minute), End: base.Add(8 * time.Hour)}))
	assert.False(t, shift.Contains(Interval{Start: base.Add(7*time.Hour + 45*time.Minute), End: base.Add(8*time.Hour + 15*time.Minute)}))
	assert.False(t, shift.Contains(Interval{Start: base.Add(-time.Minute), End: base.Add(time.Hour)}))
}

func TestISOWeekdayRoundTrip(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		iso := FromStd(d)
		require.True(t, iso.Valid(), "day %v", d)
		assert.Equal(t, d, iso.Std())
	}
	for w := Monday; w <= Sunday; w++ {
		assert.Equal(t, w, FromStd(w.Std()))
	}
	assert.Equal(t, Sunday, FromStd(time.Sunday))
	assert.Equal(t, Monday, FromStd(time.Monday))
}

func TestISOWeekdayUsesBusinessLocation(t *testing.T) {
	lima := mustLoc(t, "America/Lima")
	// 02:00 UTC Monday is still Sunday evening in Lima (UTC-5).
	instant := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, Sunday, ISOWeekday(instant, lima))
	assert.Equal(t, Monday, ISOWeekday(instant, time.UTC))
}

func TestDayBoundsAcrossDST(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	start, end := DayBounds(time.Date(2026, 3, 8, 12, 0, 0, 0, ny), ny)
	assert.Equal(t, 23*time.Hour, end.Sub(start))
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 9, end.Day())
}

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]TimeOfDay{
		"09:00":    NewTimeOfDay(9, 0),
		"9:05 AM":  NewTimeOfDay(9, 5),
		"2:30 pm":  NewTimeOfDay(14, 30),
		"12:00 AM": 0,
		"12:15PM":  NewTimeOfDay(12, 15),
		"24:00":    EndOfDay,
	}
	for in, want := range cases {
		got, err := ParseTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTimeOfDay("25:00")
	require.Error(t, err)
}

func TestAtAndFormatSlot(t *testing.T) {
	lima := mustLoc(t, "America/Lima")
	day, err := ParseDate("2026-03-02", lima)
	require.NoError(t, err)

	at := At(day, NewTimeOfDay(14, 5), lima)
	assert.Equal(t, "2:05 PM", FormatSlot(at, lima))
	assert.Equal(t, time.Date(2026, 3, 2, 19, 5, 0, 0, time.UTC), at.UTC())
	assert.Equal(t, NewTimeOfDay(14, 5), OfTime(at, lima))
	assert.Equal(t, "14:05", OfTime(at, lima).String())
}
