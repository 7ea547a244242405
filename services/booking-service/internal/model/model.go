package model

import (
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
)

type ReservationStatus string

const (
	ReservationScheduled ReservationStatus = "scheduled"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

type Service struct {
	ID              string
	Name            string
	Description     string
	DurationMinutes int
	Price           string // numeric(10,2) rendered by Postgres
	Active          bool
	CategoryID      int64
	CategoryName    string
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Category struct {
	ID          int64
	Name        string
	Description string
}

type StaffMember struct {
	ID               string
	Name             string
	Role             string
	Active           bool
	PerformsServices bool
}

// Eligible reports whether the member may be offered or assigned to clients.
func (s StaffMember) Eligible() bool { return s.Active && s.PerformsServices }

// WorkSchedule is one contiguous shift of a staff member on an ISO weekday.
type WorkSchedule struct {
	StaffID string
	Weekday clock.Weekday
	Start   clock.TimeOfDay
	End     clock.TimeOfDay
}

// Conflict is the busy interval of an existing non-cancelled reservation.
type Conflict struct {
	StaffID string
	Start   time.Time
	End     time.Time
}

func (c Conflict) Interval() clock.Interval {
	return clock.Interval{Start: c.Start, End: c.End}
}

type Reservation struct {
	ID           string
	ClientID     string
	StaffID      string
	ServiceID    string
	Start        time.Time
	End          time.Time
	Status       ReservationStatus
	PriceCharged string
	CreatedAt    time.Time
}

type ClientData struct {
	FirstName  string
	LastName   string
	Phone      string
	Email      string
	NationalID string
	BirthDate  *time.Time
}

type Client struct {
	ID string
	ClientData
	CreatedAt time.Time
}

// AgendaEntry is one row of the daily agenda export.
type AgendaEntry struct {
	ReservationID string
	Start         time.Time
	End           time.Time
	StaffName     string
	ServiceName   string
	ClientName    string
	ClientPhone   string
	Status        ReservationStatus
	PriceCharged  string
}
