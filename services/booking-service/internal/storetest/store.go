// Package storetest is an in-memory store for availability and booking
// tests. It mirrors the Postgres store closely enough for concurrency tests:
// staff rows are locked per transaction and overlapping inserts for the same
// staff member are rejected like the exclusion constraint does.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/booking"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
)

type Store struct {
	mu           sync.Mutex
	staff        map[string]model.StaffMember
	services     map[string]model.Service
	schedules    []model.WorkSchedule
	reservations []model.Reservation
	clients      []model.Client
	idem         map[string]idemEntry
	events       []outbox.Event
	pending      map[*tx][]model.Reservation
	locks        map[string]*sync.Mutex

	// Failure injection. A non-nil error is returned by the matching read.
	FailCandidates error
	FailSchedules  error
	FailConflicts  error

	// SkipLocks disables row locking so tests can reach the insert-time
	// overlap check.
	SkipLocks bool
	// BeforeInsert runs right before a reservation is inserted.
	BeforeInsert func()
}

func New() *Store {
	return &Store{
		staff:    make(map[string]model.StaffMember),
		services: make(map[string]model.Service),
		idem:     make(map[string]idemEntry),
		pending:  make(map[*tx][]model.Reservation),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Store) AddStaff(members ...model.StaffMember) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		s.staff[m.ID] = m
	}
	return s
}

func (s *Store) AddService(svc model.Service) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
	return s
}

func (s *Store) AddSchedule(rows ...model.WorkSchedule) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, rows...)
	return s
}

// Book stores a scheduled reservation directly, bypassing any checks.
func (s *Store) Book(staffID string, start, end time.Time) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Reservation{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		Start:     start,
		End:       end,
		Status:    model.ReservationScheduled,
		CreatedAt: time.Now(),
	}
	s.reservations = append(s.reservations, r)
	return r
}

// Cancel marks a stored reservation as cancelled.
func (s *Store) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reservations {
		if s.reservations[i].ID == id {
			s.reservations[i].Status = model.ReservationCancelled
		}
	}
}

func (s *Store) AddClient(c model.Client) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.clients = append(s.clients, c)
	return s
}

func (s *Store) Reservations() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Reservation(nil), s.reservations...)
}

func (s *Store) Clients() []model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Client(nil), s.clients...)
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) Candidates(_ context.Context, sel model.StaffSelector) ([]model.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCandidates != nil {
		return nil, s.FailCandidates
	}
	return s.candidatesLocked(sel)
}

func (s *Store) candidatesLocked(sel model.StaffSelector) ([]model.StaffMember, error) {
	if !sel.IsAny() {
		m, ok := s.staff[sel.StaffID()]
		if !ok || !m.Eligible() {
			return nil, availability.ErrUnknownStaff
		}
		return []model.StaffMember{m}, nil
	}
	out := make([]model.StaffMember, 0, len(s.staff))
	for _, m := range s.staff {
		if m.Eligible() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Schedules(_ context.Context, staffIDs []string, weekday clock.Weekday) ([]model.WorkSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSchedules != nil {
		return nil, s.FailSchedules
	}
	want := toSet(staffIDs)
	var out []model.WorkSchedule
	for _, row := range s.schedules {
		if want[row.StaffID] && row.Weekday == weekday {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) Conflicts(_ context.Context, staffIDs []string, from, to time.Time) ([]model.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailConflicts != nil {
		return nil, s.FailConflicts
	}
	want := toSet(staffIDs)
	window := clock.Interval{Start: from, End: to}
	var out []model.Conflict
	for _, r := range s.reservations {
		if !want[r.StaffID] || r.Status == model.ReservationCancelled {
			continue
		}
		if window.Overlaps(clock.Interval{Start: r.Start, End: r.End}) {
			out = append(out, model.Conflict{StaffID: r.StaffID, Start: r.Start, End: r.End})
		}
	}
	return out, nil
}

func (s *Store) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	t := &tx{s: s, idem: make(map[string]idemEntry)}
	defer t.release()
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	t.commit()
	return nil
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

type tx struct {
	s       *Store
	held    []*sync.Mutex
	clients []model.Client
	events  []outbox.Event
	idem    map[string]idemEntry
}

type idemEntry struct {
	reservationID string
	hash          string
}

func (t *tx) lock(name string) {
	l := t.s.lockFor(name)
	l.Lock()
	t.held = append(t.held, l)
}

func (t *tx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append(s.reservations, s.pending[t]...)
	delete(s.pending, t)
	s.clients = append(s.clients, t.clients...)
	s.events = append(s.events, t.events...)
	for k, v := range t.idem {
		s.idem[k] = v
	}
}

func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	delete(t.s.pending, t)
}

func (t *tx) LockIdempotencyKey(_ context.Context, key, requestHash string) (string, string, error) {
	t.lock("idem:" + key)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if e, ok := t.s.idem[key]; ok {
		return e.reservationID, e.hash, nil
	}
	t.idem[key] = idemEntry{hash: requestHash}
	return "", requestHash, nil
}

func (t *tx) FinalizeIdempotencyKey(_ context.Context, key, reservationID string) error {
	e := t.idem[key]
	e.reservationID = reservationID
	t.idem[key] = e
	return nil
}

func (t *tx) FindOrCreateClient(_ context.Context, data model.ClientData) (model.Client, bool, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	all := append(append([]model.Client(nil), s.clients...), t.clients...)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	for _, c := range all {
		if matches(c.ClientData, data) {
			return c, false, nil
		}
	}
	c := model.Client{ID: uuid.NewString(), ClientData: data, CreatedAt: time.Now()}
	t.clients = append(t.clients, c)
	return c, true, nil
}

func matches(have, want model.ClientData) bool {
	switch {
	case want.NationalID != "" && have.NationalID == want.NationalID:
		return true
	case want.Email != "" && strings.EqualFold(have.Email, want.Email):
		return true
	case want.Phone != "" && have.Phone == want.Phone:
		return true
	}
	return false
}

func (t *tx) ActiveService(_ context.Context, id string) (model.Service, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	svc, ok := t.s.services[id]
	if !ok || !svc.Active {
		return model.Service{}, booking.ErrServiceNotFound
	}
	return svc, nil
}

func (t *tx) LockCandidates(_ context.Context, sel model.StaffSelector) ([]model.StaffMember, error) {
	t.s.mu.Lock()
	if t.s.FailCandidates != nil {
		t.s.mu.Unlock()
		return nil, t.s.FailCandidates
	}
	staff, err := t.s.candidatesLocked(sel)
	skip := t.s.SkipLocks
	t.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !skip {
		ids := make([]string, len(staff))
		for i, m := range staff {
			ids[i] = m.ID
		}
		sort.Strings(ids)
		for _, id := range ids {
			t.lock("staff:" + id)
		}
	}
	return staff, nil
}

func (t *tx) Schedules(ctx context.Context, staffIDs []string, weekday clock.Weekday) ([]model.WorkSchedule, error) {
	return t.s.Schedules(ctx, staffIDs, weekday)
}

func (t *tx) Conflicts(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.Conflict, error) {
	return t.s.Conflicts(ctx, staffIDs, from, to)
}

func (t *tx) InsertReservation(_ context.Context, r model.Reservation) (model.Reservation, error) {
	if t.s.BeforeInsert != nil {
		t.s.BeforeInsert()
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	iv := clock.Interval{Start: r.Start, End: r.End}
	overlaps := func(o model.Reservation) bool {
		return o.StaffID == r.StaffID && o.Status != model.ReservationCancelled &&
			iv.Overlaps(clock.Interval{Start: o.Start, End: o.End})
	}
	for _, o := range s.reservations {
		if overlaps(o) {
			return model.Reservation{}, booking.ErrSlotUnavailable
		}
	}
	for _, rows := range s.pending {
		for _, o := range rows {
			if overlaps(o) {
				return model.Reservation{}, booking.ErrSlotUnavailable
			}
		}
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	s.pending[t] = append(s.pending[t], r)
	return r, nil
}

func (t *tx) Reservation(_ context.Context, id string) (model.Reservation, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.ID == id {
			return r, nil
		}
	}
	for _, r := range s.pending[t] {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Reservation{}, booking.ErrReservationNotFound
}

func (t *tx) EnqueueEvent(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
