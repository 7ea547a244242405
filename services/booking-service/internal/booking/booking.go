// Package booking turns a chosen slot into a reservation. The commit
// re-verifies the slot against the work schedule and existing reservations
// inside one transaction, whatever path produced the slot.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrServiceNotFound     = errors.New("service not found")
	ErrStaffNotFound       = availability.ErrUnknownStaff
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrSlotUnavailable means no eligible staff member is free for the
	// requested interval any more. Clients should pick another time.
	ErrSlotUnavailable = errors.New("the selected time is no longer available")
	// ErrIdempotencyKeyReused means the key already belongs to a request for a
	// different client, service, staff member or time.
	ErrIdempotencyKeyReused = errors.New("idempotency key was used for a different request")
)

// Tx is the transactional view of the store used by a commit.
type Tx interface {
	// LockIdempotencyKey records key with requestHash unless it exists, locks
	// it for the rest of the transaction and returns the reservation it
	// already produced (or "") and the hash stored with it.
	LockIdempotencyKey(ctx context.Context, key, requestHash string) (reservationID, storedHash string, err error)
	FinalizeIdempotencyKey(ctx context.Context, key, reservationID string) error

	// FindOrCreateClient applies the first-match dedup rule. created reports
	// whether a new row was inserted.
	FindOrCreateClient(ctx context.Context, data model.ClientData) (client model.Client, created bool, err error)
	// ActiveService returns ErrServiceNotFound for unknown or inactive ids.
	ActiveService(ctx context.Context, id string) (model.Service, error)
	// LockCandidates returns the eligible staff for sel with their rows locked
	// until the transaction ends. Unknown ids yield ErrStaffNotFound.
	LockCandidates(ctx context.Context, sel model.StaffSelector) ([]model.StaffMember, error)
	Schedules(ctx context.Context, staffIDs []string, weekday clock.Weekday) ([]model.WorkSchedule, error)
	Conflicts(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Conflict, error)
	// InsertReservation returns ErrSlotUnavailable when the database rejects
	// an overlapping interval for the same staff member.
	InsertReservation(ctx context.Context, r model.Reservation) (model.Reservation, error)
	Reservation(ctx context.Context, id string) (model.Reservation, error)
	EnqueueEvent(ctx context.Context, evt outbox.Event) error
}

// Store runs fn in a transaction that commits when fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}
