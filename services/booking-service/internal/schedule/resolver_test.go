package schedule

import (
	"testing"
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverAbsentMeansOff(t *testing.T) {
	r := NewResolver([]model.WorkSchedule{
		{StaffID: "ana", Weekday: clock.Monday, Start: clock.NewTimeOfDay(9, 0), End: clock.NewTimeOfDay(17, 0)},
	})

	row, ok := r.For("ana", clock.Monday)
	require.True(t, ok)
	assert.Equal(t, clock.NewTimeOfDay(17, 0), row.End)

	_, ok = r.For("ana", clock.Sunday)
	assert.False(t, ok)
	_, ok = r.For("luis", clock.Monday)
	assert.False(t, ok)
}

func TestResolverFirstRowWinsAndInvalidRowsDropped(t *testing.T) {
	r := NewResolver([]model.WorkSchedule{
		{StaffID: "ana", Weekday: clock.Tuesday, Start: clock.NewTimeOfDay(10, 0), End: clock.NewTimeOfDay(14, 0)},
		{StaffID: "ana", Weekday: clock.Tuesday, Start: clock.NewTimeOfDay(15, 0), End: clock.NewTimeOfDay(19, 0)},
		{StaffID: "luis", Weekday: clock.Weekday(0), Start: clock.NewTimeOfDay(9, 0), End: clock.NewTimeOfDay(17, 0)},
		{StaffID: "eva", Weekday: clock.Friday, Start: clock.NewTimeOfDay(17, 0), End: clock.NewTimeOfDay(9, 0)},
	})

	row, ok := r.For("ana", clock.Tuesday)
	require.True(t, ok)
	assert.Equal(t, clock.NewTimeOfDay(10, 0), row.Start)

	_, ok = r.For("luis", clock.Sunday)
	assert.False(t, ok, "weekday 0 is not an ISO day and must not alias Sunday")
	_, ok = r.For("eva", clock.Friday)
	assert.False(t, ok)
}

func TestWindowUsesISOWeekdayOfLocalDate(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	r := NewResolver([]model.WorkSchedule{
		{StaffID: "ana", Weekday: clock.Monday, Start: clock.NewTimeOfDay(9, 0), End: clock.NewTimeOfDay(17, 0)},
	})

	monday, err := clock.ParseDate("2026-03-02", lima)
	require.NoError(t, err)
	w, ok := r.Window("ana", monday, lima)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, lima), w.Start)
	assert.Equal(t, time.Date(2026, 3, 2, 17, 0, 0, 0, lima), w.End)

	sunday, err := clock.ParseDate("2026-03-01", lima)
	require.NoError(t, err)
	_, ok = r.Window("ana", sunday, lima)
	assert.False(t, ok)
}

func TestWorkingKeepsOrder(t *testing.T) {
	r := NewResolver([]model.WorkSchedule{
		{StaffID: "b", Weekday: clock.Monday, Start: 540, End: 1020},
		{StaffID: "a", Weekday: clock.Monday, Start: 540, End: 1020},
	})
	got := r.Working([]model.StaffMember{{ID: "a"}, {ID: "c"}, {ID: "b"}}, clock.Monday)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}
