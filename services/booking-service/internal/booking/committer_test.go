package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/booking"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
	"github.com/jvstudio/salonbook/services/booking-service/internal/storetest"
)

var (
	ana  = model.StaffMember{ID: "st-ana", Name: "Ana", Active: true, PerformsServices: true}
	beto = model.StaffMember{ID: "st-beto", Name: "Beto", Active: true, PerformsServices: true}
	cut  = model.Service{ID: "svc-cut", Name: "Corte clásico", DurationMinutes: 30, Price: "35.00", Active: true}
	dye  = model.Service{ID: "svc-dye", Name: "Tinte", DurationMinutes: 90, Price: "120.00", Active: false}
)

const monday = "2026-10-19"

func lima(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	return loc
}

func tod(t *testing.T, s string) clock.TimeOfDay {
	t.Helper()
	v, err := clock.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := clock.ParseDate(s, lima(t))
	require.NoError(t, err)
	return d
}

func at(t *testing.T, d, hhmm string) time.Time {
	return clock.At(date(t, d), tod(t, hhmm), lima(t))
}

func shift(staffID string, day clock.Weekday, from, to string) model.WorkSchedule {
	start, _ := clock.ParseTimeOfDay(from)
	end, _ := clock.ParseTimeOfDay(to)
	return model.WorkSchedule{StaffID: staffID, Weekday: day, Start: start, End: end}
}

func newStore() *storetest.Store {
	return storetest.New().
		AddStaff(ana, beto).
		AddService(cut).
		AddService(dye).
		AddSchedule(
			shift(ana.ID, clock.Monday, "09:00", "18:00"),
			shift(beto.ID, clock.Monday, "12:00", "20:00"),
		)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newCommitter(t *testing.T, store booking.Store) *booking.Committer {
	t.Helper()
	now := at(t, "2026-10-18", "08:00")
	return booking.NewCommitter(store, booking.Config{
		Location: lima(t),
		OpenAt:   clock.NewTimeOfDay(9, 0),
		CloseAt:  clock.NewTimeOfDay(21, 0),
	}, discard(), nil).WithClock(func() time.Time { return now })
}

func request(t *testing.T, staff model.StaffSelector, hhmm string) booking.Request {
	return booking.Request{
		Client: model.ClientData{
			FirstName: "Lucía",
			LastName:  "Quispe",
			Phone:     "987-654 321",
			Email:     "Lucia@Example.com",
		},
		ServiceID: cut.ID,
		Staff:     staff,
		Date:      date(t, monday),
		Time:      tod(t, hhmm),
		Price:     cut.Price,
	}
}

func TestCommitSchedulesAndShrinksAvailability(t *testing.T) {
	store := newStore()
	c := newCommitter(t, store)

	conf, err := c.Commit(context.Background(), request(t, model.StaffSelector(ana.ID), "10:00"))
	require.NoError(t, err)

	res := conf.Reservation
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, ana.ID, res.StaffID)
	assert.Equal(t, cut.ID, res.ServiceID)
	assert.True(t, res.Start.Equal(at(t, monday, "10:00")))
	assert.True(t, res.End.Equal(at(t, monday, "10:30")))
	assert.Equal(t, model.ReservationScheduled, res.Status)
	assert.Equal(t, "35.00", res.PriceCharged)

	clients := store.Clients()
	require.Len(t, clients, 1)
	assert.Equal(t, "lucia@example.com", clients[0].Email)
	assert.Equal(t, "987654321", clients[0].Phone)
	assert.Equal(t, clients[0].ID, res.ClientID)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, outbox.EventReservationScheduled, events[0].EventType)
	assert.Equal(t, res.ID, events[0].AggregateID)

	now := at(t, "2026-10-18", "08:00")
	calc := availability.NewCalculator(store, availability.Config{Location: lima(t)}, discard(), nil).
		WithClock(func() time.Time { return now })
	avail, err := calc.Compute(context.Background(), availability.Query{
		Date:     date(t, monday),
		Staff:    model.StaffSelector(ana.ID),
		Duration: 30 * time.Minute,
	})
	require.NoError(t, err)
	got := avail.Formatted(lima(t))
	assert.NotContains(t, got, "10:00 AM")
	assert.Contains(t, got, "9:30 AM")
	assert.Contains(t, got, "10:30 AM")
}

func TestCommitRejectsBusyStaff(t *testing.T) {
	store := newStore()
	store.Book(ana.ID, at(t, monday, "10:15"), at(t, monday, "10:45"))
	c := newCommitter(t, store)

	_, err := c.Commit(context.Background(), request(t, model.StaffSelector(ana.ID), "10:00"))
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)
	assert.Len(t, store.Reservations(), 1)
	assert.Empty(t, store.Events())
	assert.Empty(t, store.Clients(), "client insert must roll back with the reservation")
}

func TestCommitAnyPicksAFreeWorkingMember(t *testing.T) {
	store := newStore()
	store.Book(ana.ID, at(t, monday, "13:00"), at(t, monday, "14:00"))
	c := newCommitter(t, store)

	conf, err := c.Commit(context.Background(), request(t, model.AnyStaff, "13:00"))
	require.NoError(t, err)
	assert.Equal(t, beto.ID, conf.Reservation.StaffID)
}

func TestCommitAnyChecksWorkSchedule(t *testing.T) {
	store := newStore()
	// Beto starts at noon, so nobody can take 10:00 once Ana is busy.
	store.Book(ana.ID, at(t, monday, "10:00"), at(t, monday, "10:30"))
	c := newCommitter(t, store)

	_, err := c.Commit(context.Background(), request(t, model.AnyStaff, "10:00"))
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)

	// Nobody works on Sundays.
	req := request(t, model.AnyStaff, "10:00")
	req.Date = date(t, "2026-10-25")
	_, err = c.Commit(context.Background(), req)
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestCommitOutsideOperatingWindow(t *testing.T) {
	store := newStore().AddSchedule(shift(ana.ID, clock.Tuesday, "06:00", "23:00"))
	c := newCommitter(t, store)

	req := request(t, model.StaffSelector(ana.ID), "20:45")
	req.Date = date(t, "2026-10-20")
	_, err := c.Commit(context.Background(), req)
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)

	req.Time = tod(t, "08:30")
	_, err = c.Commit(context.Background(), req)
	require.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestCommitValidation(t *testing.T) {
	c := newCommitter(t, newStore())
	ctx := context.Background()

	req := request(t, model.AnyStaff, "10:00")
	req.ServiceID = dye.ID
	_, err := c.Commit(ctx, req)
	assert.ErrorIs(t, err, booking.ErrServiceNotFound)

	req = request(t, model.AnyStaff, "10:00")
	req.Client.Email = "not-an-email"
	_, err = c.Commit(ctx, req)
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	req = request(t, "st-ghost", "10:00")
	_, err = c.Commit(ctx, req)
	assert.ErrorIs(t, err, booking.ErrStaffNotFound)

	req = request(t, model.AnyStaff, "10:00")
	req.Date = date(t, "2026-10-17")
	_, err = c.Commit(ctx, req)
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)
}

func TestCommitChargesCatalogPrice(t *testing.T) {
	c := newCommitter(t, newStore())
	req := request(t, model.AnyStaff, "09:00")
	req.Price = "1.00"

	conf, err := c.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "35.00", conf.Reservation.PriceCharged)
}

func TestCommitIdempotencyKeyReplays(t *testing.T) {
	store := newStore()
	c := newCommitter(t, store)
	req := request(t, model.AnyStaff, "09:00")
	req.IdempotencyKey = "checkout-123"

	first, err := c.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := c.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Reservation.ID, second.Reservation.ID)
	assert.Len(t, store.Reservations(), 1)
	assert.Len(t, store.Events(), 1)
}

func TestCommitRejectsReusedIdempotencyKey(t *testing.T) {
	store := newStore()
	c := newCommitter(t, store)
	ctx := context.Background()
	req := request(t, model.AnyStaff, "09:00")
	req.IdempotencyKey = "checkout-456"

	first, err := c.Commit(ctx, req)
	require.NoError(t, err)

	later := req
	later.Time = tod(t, "11:00")
	_, err = c.Commit(ctx, later)
	require.ErrorIs(t, err, booking.ErrIdempotencyKeyReused)

	pinned := req
	pinned.Staff = model.StaffSelector(beto.ID)
	_, err = c.Commit(ctx, pinned)
	require.ErrorIs(t, err, booking.ErrIdempotencyKeyReused)

	// Normalization makes this the same request.
	retry := req
	retry.Client.Email = "LUCIA@example.com"
	second, err := c.Commit(ctx, retry)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Reservation.ID, second.Reservation.ID)
	assert.Len(t, store.Reservations(), 1)
}

func TestCommitEnforcesBookingRules(t *testing.T) {
	store := newStore()
	now := at(t, monday, "09:00")
	clk := func() time.Time { return now }
	c := booking.NewCommitter(store, booking.Config{
		Location:   lima(t),
		OpenAt:     clock.NewTimeOfDay(9, 0),
		CloseAt:    clock.NewTimeOfDay(21, 0),
		Step:       5 * time.Minute,
		MinLead:    2 * time.Hour,
		MaxAdvance: 90,
	}, discard(), nil).WithClock(clk)
	calc := availability.NewCalculator(store, availability.Config{
		Location:   lima(t),
		Step:       5 * time.Minute,
		MinLead:    2 * time.Hour,
		MaxAdvance: 90,
	}, discard(), nil).WithClock(clk)
	ctx := context.Background()

	// A Monday five years out.
	req := request(t, model.StaffSelector(ana.ID), "10:00")
	req.Date = date(t, "2031-10-20")
	_, err := c.Commit(ctx, req)
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)
	assert.ErrorIs(t, err, availability.ErrDateOutOfRange)
	_, err = calc.Compute(ctx, availability.Query{Date: req.Date, Staff: req.Staff, Duration: 30 * time.Minute})
	assert.ErrorIs(t, err, availability.ErrDateOutOfRange)

	// Off the five minute grid.
	_, err = c.Commit(ctx, request(t, model.StaffSelector(ana.ID), "12:03"))
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	// Inside the two hour lead time.
	_, err = c.Commit(ctx, request(t, model.StaffSelector(ana.ID), "10:30"))
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

	assert.Empty(t, store.Reservations())

	// The first start the calculator offers is bookable.
	res, err := calc.Compute(ctx, availability.Query{Date: date(t, monday), Staff: model.StaffSelector(ana.ID), Duration: 30 * time.Minute})
	require.NoError(t, err)
	got := res.Formatted(lima(t))
	require.NotEmpty(t, got)
	assert.Equal(t, "11:00 AM", got[0])

	conf, err := c.Commit(ctx, request(t, model.StaffSelector(ana.ID), "11:00"))
	require.NoError(t, err)
	assert.True(t, conf.Reservation.Start.Equal(at(t, monday, "11:00")))
}

func TestConcurrentCommitsForSameSlot(t *testing.T) {
	for _, skipLocks := range []bool{false, true} {
		store := newStore()
		store.SkipLocks = skipLocks
		c := newCommitter(t, store)

		const attempts = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
			other   []error
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Commit(context.Background(), request(t, model.StaffSelector(ana.ID), "11:00"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					success++
				case !errors.Is(err, booking.ErrSlotUnavailable):
					other = append(other, err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, success, "skipLocks=%v", skipLocks)
		assert.Empty(t, other)
		assert.Len(t, store.Reservations(), 1)
	}
}

func TestConcurrentAnyCommitsFillEveryFreeMember(t *testing.T) {
	store := newStore()
	c := newCommitter(t, store)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		got  = map[string]int{}
		errs int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conf, err := c.Commit(context.Background(), request(t, model.AnyStaff, "14:00"))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs++
				return
			}
			got[conf.Reservation.StaffID]++
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{ana.ID: 1, beto.ID: 1}, got)
	assert.Equal(t, 3, errs)
}
