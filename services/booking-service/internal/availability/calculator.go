// Package availability computes the bookable start times of a day.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/metrics"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/jvstudio/salonbook/services/booking-service/internal/schedule"
)

var (
	ErrInvalidDuration = errors.New("service duration must be between one minute and 24 hours")
	ErrDateOutOfRange  = errors.New("date is outside the booking horizon")
	ErrUnknownStaff    = errors.New("staff member not found")
)

// Source is the read side of the store used by the calculator.
type Source interface {
	// Candidates returns the eligible staff for sel, ordered by name.
	// A specific id that is unknown or ineligible yields ErrUnknownStaff.
	Candidates(ctx context.Context, sel model.StaffSelector) ([]model.StaffMember, error)
	Schedules(ctx context.Context, staffIDs []string, weekday clock.Weekday) ([]model.WorkSchedule, error)
	// Conflicts returns non-cancelled reservations of staffIDs overlapping [from, to).
	Conflicts(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Conflict, error)
}

type Status string

const (
	StatusOpen        Status = "open"
	StatusFullyBooked Status = "fully_booked"
	StatusClosed      Status = "closed"
	StatusUnavailable Status = "unavailable"
)

type Result struct {
	Status Status
	Slots  []time.Time
}

// Formatted renders the slots as "h:mm AM" strings in loc.
func (r Result) Formatted(loc *time.Location) []string {
	out := make([]string, 0, len(r.Slots))
	for _, s := range r.Slots {
		out = append(out, clock.FormatSlot(s, loc))
	}
	return out
}

type Query struct {
	Date     time.Time // any instant on the civil date, interpreted in the business location
	Staff    model.StaffSelector
	Duration time.Duration
}

type Config struct {
	Location   *time.Location
	OpenAt     clock.TimeOfDay
	CloseAt    clock.TimeOfDay
	Step       time.Duration
	MinLead    time.Duration
	MaxAdvance int // days ahead of today; 0 disables the check
}

type Calculator struct {
	src     Source
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCalculator(src Source, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Calculator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Step <= 0 {
		cfg.Step = 5 * time.Minute
	}
	if cfg.CloseAt <= cfg.OpenAt {
		cfg.OpenAt, cfg.CloseAt = clock.NewTimeOfDay(9, 0), clock.NewTimeOfDay(21, 0)
	}
	return &Calculator{src: src, cfg: cfg, now: time.Now, logger: logger, metrics: m}
}

// WithClock replaces the wall clock, for tests.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

func (c *Calculator) Location() *time.Location { return c.cfg.Location }

// Compute returns the bookable start times for q. Validation errors come back
// with a zero Result. Storage errors come back with StatusUnavailable and the
// wrapped error, so callers can degrade to an empty list and still tell it
// apart from a fully booked day.
func (c *Calculator) Compute(ctx context.Context, q Query) (Result, error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "availability.Compute")
	defer span.End()
	started := time.Now()

	res, err := c.compute(ctx, q)

	span.SetAttributes(
		attribute.String("availability.status", string(res.Status)),
		attribute.Int("availability.slots", len(res.Slots)),
		attribute.String("availability.staff", string(q.Staff)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if res.Status != "" {
		c.metrics.ObserveAvailability(string(res.Status), time.Since(started))
	}
	if res.Status == StatusUnavailable {
		c.logger.ErrorContext(ctx, "availability lookup failed", "err", err, "date", clock.FormatDate(q.Date.In(c.cfg.Location)))
	}
	return res, err
}

func (c *Calculator) compute(ctx context.Context, q Query) (Result, error) {
	if q.Duration < time.Minute || q.Duration > MaxDuration {
		return Result{}, ErrInvalidDuration
	}
	loc := c.cfg.Location
	dayStart, dayEnd := clock.DayBounds(q.Date, loc)
	now := c.now()
	if err := CheckHorizon(dayStart, now, loc, c.cfg.MaxAdvance); err != nil {
		return Result{}, err
	}

	candidates, err := c.src.Candidates(ctx, q.Staff)
	if err != nil {
		if errors.Is(err, ErrUnknownStaff) {
			return Result{}, err
		}
		return unavailable(fmt.Errorf("load candidates: %w", err))
	}

	weekday := clock.ISOWeekday(dayStart, loc)
	rows, err := c.src.Schedules(ctx, staffIDs(candidates), weekday)
	if err != nil {
		return unavailable(fmt.Errorf("load schedules: %w", err))
	}
	resolver := schedule.NewResolver(rows)
	working := resolver.Working(candidates, weekday)
	if len(working) == 0 {
		return Result{Status: StatusClosed, Slots: []time.Time{}}, nil
	}

	conflicts, err := c.src.Conflicts(ctx, staffIDs(working), dayStart, dayEnd)
	if err != nil {
		return unavailable(fmt.Errorf("load conflicts: %w", err))
	}
	idx := NewIndex(conflicts)

	shifts := make(map[string]clock.Interval, len(working))
	for _, s := range working {
		w, _ := resolver.Window(s.ID, dayStart, loc)
		shifts[s.ID] = w
	}

	earliest := now.Add(c.cfg.MinLead)
	windowEnd := clock.At(dayStart, c.cfg.CloseAt, loc)
	slots := []time.Time{}
	for t := clock.At(dayStart, c.cfg.OpenAt, loc); !t.Add(q.Duration).After(windowEnd); t = t.Add(c.cfg.Step) {
		if t.Before(earliest) {
			continue
		}
		slot := clock.Interval{Start: t, End: t.Add(q.Duration)}
		for _, s := range working {
			if shifts[s.ID].Contains(slot) && idx.Free(s.ID, slot) {
				slots = append(slots, t)
				break
			}
		}
	}

	if len(slots) == 0 {
		return Result{Status: StatusFullyBooked, Slots: slots}, nil
	}
	return Result{Status: StatusOpen, Slots: slots}, nil
}

func unavailable(err error) (Result, error) {
	return Result{Status: StatusUnavailable, Slots: []time.Time{}}, err
}

func staffIDs(staff []model.StaffMember) []string {
	ids := make([]string, len(staff))
	for i, s := range staff {
		ids[i] = s.ID
	}
	return ids
}
