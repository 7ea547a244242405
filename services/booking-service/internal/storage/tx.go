package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jvstudio/salonbook/libs/db"
	"github.com/jvstudio/salonbook/services/booking-service/internal/booking"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
)

// txStore implements booking.Tx on one pgx transaction.
type txStore struct {
	tx pgx.Tx
}

func (t *txStore) LockIdempotencyKey(ctx context.Context, key, requestHash string) (string, string, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key, request_hash)
		VALUES ($1, $2)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, requestHash); err != nil {
		return "", "", err
	}
	var reservationID, storedHash string
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(reservation_id::text, ''), request_hash
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&reservationID, &storedHash)
	return reservationID, storedHash, err
}

func (t *txStore) FinalizeIdempotencyKey(ctx context.Context, key, reservationID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET reservation_id = $2, updated_at = now()
		WHERE idempotency_key = $1
	`, key, reservationID)
	return err
}

// FindOrCreateClient returns the oldest client matching any identifier, or
// inserts data as a new client.
func (t *txStore) FindOrCreateClient(ctx context.Context, data model.ClientData) (model.Client, bool, error) {
	var c model.Client
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, first_name, last_name, phone, email, COALESCE(national_id, ''), birth_date, created_at
		FROM clients
		WHERE ($1 <> '' AND national_id = $1)
			OR lower(email) = $2
			OR phone = $3
		ORDER BY created_at, id
		LIMIT 1
	`, data.NationalID, data.Email, data.Phone).Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.NationalID, &c.BirthDate, &c.CreatedAt,
	)
	if err == nil {
		return c, false, nil
	}
	if !db.IsNotFound(err) {
		return model.Client{}, false, err
	}

	c = model.Client{ClientData: data}
	err = t.tx.QueryRow(ctx, `
		INSERT INTO clients (first_name, last_name, phone, email, national_id, birth_date)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id::text, created_at
	`, data.FirstName, data.LastName, data.Phone, data.Email, data.NationalID, data.BirthDate).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return model.Client{}, false, err
	}
	return c, true, nil
}

func (t *txStore) ActiveService(ctx context.Context, id string) (model.Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Service{}, booking.ErrServiceNotFound
	}
	svc, err := scanService(t.tx.QueryRow(ctx, serviceSelect+` WHERE s.id = $1 AND s.is_active`, id))
	if db.IsNotFound(err) {
		return model.Service{}, booking.ErrServiceNotFound
	}
	return svc, err
}

func (t *txStore) LockCandidates(ctx context.Context, sel model.StaffSelector) ([]model.StaffMember, error) {
	return candidates(ctx, t.tx, sel, true)
}

func (t *txStore) Schedules(ctx context.Context, staffIDs []string, weekday clock.Weekday) ([]model.WorkSchedule, error) {
	return schedules(ctx, t.tx, staffIDs, weekday)
}

func (t *txStore) Conflicts(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Conflict, error) {
	return conflicts(ctx, t.tx, staffIDs, from, to)
}

// InsertReservation maps the no-overlap exclusion constraint to
// booking.ErrSlotUnavailable.
func (t *txStore) InsertReservation(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO reservations (client_id, staff_id, service_id, start_time, end_time, status, price_charged)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)
		RETURNING id::text, created_at
	`, r.ClientID, r.StaffID, r.ServiceID, r.Start, r.End, string(r.Status), r.PriceCharged).Scan(&r.ID, &r.CreatedAt)
	if db.IsExclusionViolation(err) {
		return model.Reservation{}, booking.ErrSlotUnavailable
	}
	if err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

func (t *txStore) Reservation(ctx context.Context, id string) (model.Reservation, error) {
	var (
		r      model.Reservation
		status string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, client_id::text, staff_id::text, service_id::text, start_time, end_time,
			status, price_charged::text, created_at
		FROM reservations
		WHERE id = $1
	`, id).Scan(&r.ID, &r.ClientID, &r.StaffID, &r.ServiceID, &r.Start, &r.End, &status, &r.PriceCharged, &r.CreatedAt)
	if db.IsNotFound(err) {
		return model.Reservation{}, booking.ErrReservationNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	r.Status = model.ReservationStatus(status)
	return r, nil
}

func (t *txStore) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return outbox.Insert(ctx, t.tx, evt)
}
