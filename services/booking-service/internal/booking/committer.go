package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/metrics"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
	"github.com/jvstudio/salonbook/services/booking-service/internal/schedule"
)

type Request struct {
	Client    model.ClientData
	ServiceID string
	Staff     model.StaffSelector
	Date      time.Time // civil date, business location
	Time      clock.TimeOfDay
	// Price is what the client saw. The catalog price is always charged; a
	// mismatch is only logged.
	Price          string
	IdempotencyKey string
}

type Confirmation struct {
	Reservation model.Reservation
	Client      model.Client
	// Replayed is set when the idempotency key had already produced this
	// reservation.
	Replayed bool
}

// Config holds the same booking rules the availability calculator applies, so
// a slot that could never be offered cannot be committed either.
type Config struct {
	Location   *time.Location
	OpenAt     clock.TimeOfDay
	CloseAt    clock.TimeOfDay
	Step       time.Duration
	MinLead    time.Duration
	MaxAdvance int // days ahead of today; 0 disables the check
}

type Committer struct {
	store   Store
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCommitter(store Store, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Committer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CloseAt <= cfg.OpenAt {
		cfg.OpenAt, cfg.CloseAt = clock.NewTimeOfDay(9, 0), clock.NewTimeOfDay(21, 0)
	}
	if cfg.Step <= 0 {
		cfg.Step = 5 * time.Minute
	}
	return &Committer{store: store, cfg: cfg, now: time.Now, logger: logger, metrics: m}
}

func (c *Committer) WithClock(now func() time.Time) *Committer {
	c.now = now
	return c
}

// Commit books req. It returns ErrSlotUnavailable when every eligible staff
// member is off or busy for the interval, ErrInvalidRequest,
// ErrServiceNotFound or ErrStaffNotFound for bad input, and a wrapped storage
// error otherwise.
func (c *Committer) Commit(ctx context.Context, req Request) (Confirmation, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.Commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.service_id", req.ServiceID),
		attribute.String("booking.staff", string(req.Staff)),
	)

	conf, err := c.commit(ctx, req)

	outcome := outcomeOf(err)
	c.metrics.ObserveCommit(outcome)
	if err != nil {
		span.RecordError(err)
		if outcome == "error" {
			span.SetStatus(codes.Error, err.Error())
			c.logger.ErrorContext(ctx, "reservation commit failed", "err", err, "service_id", req.ServiceID, "staff", req.Staff)
		} else {
			c.logger.InfoContext(ctx, "reservation rejected", "reason", outcome, "err", err.Error(), "service_id", req.ServiceID, "staff", req.Staff)
		}
		return Confirmation{}, err
	}
	span.SetAttributes(attribute.String("booking.reservation_id", conf.Reservation.ID))
	c.logger.InfoContext(ctx, "reservation scheduled",
		"reservation_id", conf.Reservation.ID,
		"staff_id", conf.Reservation.StaffID,
		"start", conf.Reservation.Start.Format(time.RFC3339),
		"replayed", conf.Replayed,
	)
	return conf, nil
}

func (c *Committer) commit(ctx context.Context, req Request) (Confirmation, error) {
	clientData, err := NormalizeClient(req.Client)
	if err != nil {
		return Confirmation{}, err
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ServiceID == "" {
		return Confirmation{}, fmt.Errorf("%w: service id is required", ErrInvalidRequest)
	}
	if req.Staff == "" {
		req.Staff = model.AnyStaff
	}
	if !req.Time.Valid() {
		return Confirmation{}, fmt.Errorf("%w: time of day out of range", ErrInvalidRequest)
	}

	loc := c.cfg.Location
	now := c.now()
	if err := availability.CheckHorizon(req.Date, now, loc, c.cfg.MaxAdvance); err != nil {
		return Confirmation{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !availability.OnGrid(req.Time, c.cfg.OpenAt, c.cfg.Step) {
		return Confirmation{}, fmt.Errorf("%w: start time must be a multiple of %s after %s", ErrInvalidRequest, c.cfg.Step, c.cfg.OpenAt)
	}
	start := clock.At(req.Date, req.Time, loc)
	if start.Before(now) {
		return Confirmation{}, fmt.Errorf("%w: the selected time has already passed", ErrInvalidRequest)
	}
	if start.Before(now.Add(c.cfg.MinLead)) {
		return Confirmation{}, ErrSlotUnavailable
	}
	hash := fingerprint(clientData, req, start)

	var conf Confirmation
	err = c.store.InTx(ctx, func(tx Tx) error {
		if req.IdempotencyKey != "" {
			prior, storedHash, err := tx.LockIdempotencyKey(ctx, req.IdempotencyKey, hash)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			// Keys recorded before hashes were stored carry an empty hash.
			if storedHash != "" && storedHash != hash {
				return ErrIdempotencyKeyReused
			}
			if prior != "" {
				res, err := tx.Reservation(ctx, prior)
				if err != nil {
					return fmt.Errorf("load replayed reservation: %w", err)
				}
				conf = Confirmation{Reservation: res, Client: model.Client{ID: res.ClientID}, Replayed: true}
				return nil
			}
		}

		client, _, err := tx.FindOrCreateClient(ctx, clientData)
		if err != nil {
			return fmt.Errorf("resolve client: %w", err)
		}

		svc, err := tx.ActiveService(ctx, req.ServiceID)
		if err != nil {
			return err
		}
		if req.Price != "" && req.Price != svc.Price {
			c.logger.WarnContext(ctx, "client price differs from catalog", "service_id", svc.ID, "client_price", req.Price, "catalog_price", svc.Price)
		}

		slot := clock.Interval{Start: start, End: start.Add(svc.Duration())}
		window := clock.Interval{Start: clock.At(start, c.cfg.OpenAt, loc), End: clock.At(start, c.cfg.CloseAt, loc)}
		if !window.Contains(slot) {
			return ErrSlotUnavailable
		}

		staff, err := c.pickStaff(ctx, tx, req.Staff, slot)
		if err != nil {
			return err
		}

		res, err := tx.InsertReservation(ctx, model.Reservation{
			ClientID:     client.ID,
			StaffID:      staff.ID,
			ServiceID:    svc.ID,
			Start:        slot.Start,
			End:          slot.End,
			Status:       model.ReservationScheduled,
			PriceCharged: svc.Price,
		})
		if err != nil {
			return err
		}

		evt, err := outbox.NewEvent("reservation", res.ID, outbox.EventReservationScheduled, scheduledPayload{
			ReservationID: res.ID,
			ClientID:      res.ClientID,
			StaffID:       res.StaffID,
			ServiceID:     res.ServiceID,
			StartTime:     res.Start.UTC().Format(time.RFC3339),
			EndTime:       res.End.UTC().Format(time.RFC3339),
			PriceCharged:  res.PriceCharged,
			Status:        string(res.Status),
		})
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, evt); err != nil {
			return fmt.Errorf("enqueue event: %w", err)
		}
		if req.IdempotencyKey != "" {
			if err := tx.FinalizeIdempotencyKey(ctx, req.IdempotencyKey, res.ID); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		conf = Confirmation{Reservation: res, Client: client}
		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}
	return conf, nil
}

// pickStaff locks the candidates and returns the first, in name order, whose
// shift contains slot and who has no overlapping reservation.
func (c *Committer) pickStaff(ctx context.Context, tx Tx, sel model.StaffSelector, slot clock.Interval) (model.StaffMember, error) {
	candidates, err := tx.LockCandidates(ctx, sel)
	if err != nil {
		return model.StaffMember{}, err
	}
	if len(candidates) == 0 {
		return model.StaffMember{}, ErrSlotUnavailable
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		return candidates[i].ID < candidates[j].ID
	})

	loc := c.cfg.Location
	weekday := clock.ISOWeekday(slot.Start, loc)
	ids := make([]string, len(candidates))
	for i, s := range candidates {
		ids[i] = s.ID
	}
	rows, err := tx.Schedules(ctx, ids, weekday)
	if err != nil {
		return model.StaffMember{}, fmt.Errorf("load schedules: %w", err)
	}
	resolver := schedule.NewResolver(rows)

	conflicts, err := tx.Conflicts(ctx, ids, slot.Start, slot.End)
	if err != nil {
		return model.StaffMember{}, fmt.Errorf("load conflicts: %w", err)
	}
	busy := make(map[string]bool, len(conflicts))
	for _, cf := range conflicts {
		if cf.Interval().Overlaps(slot) {
			busy[cf.StaffID] = true
		}
	}

	for _, s := range candidates {
		shift, ok := resolver.Window(s.ID, slot.Start, loc)
		if !ok || !shift.Contains(slot) || busy[s.ID] {
			continue
		}
		return s, nil
	}
	return model.StaffMember{}, ErrSlotUnavailable
}

// fingerprint identifies what a request books, so a retry can be told apart
// from a reused idempotency key.
func fingerprint(client model.ClientData, req Request, start time.Time) string {
	h := sha256.New()
	for _, part := range []string{
		client.Email,
		client.Phone,
		client.NationalID,
		req.ServiceID,
		string(req.Staff),
		start.UTC().Format(time.RFC3339),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type scheduledPayload struct {
	ReservationID string `json:"reservation_id"`
	ClientID      string `json:"client_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	PriceCharged  string `json:"price_charged"`
	Status        string `json:"status"`
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "scheduled"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrIdempotencyKeyReused):
		return "idempotency_conflict"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrServiceNotFound), errors.Is(err, ErrStaffNotFound):
		return "invalid"
	default:
		return "error"
	}
}
