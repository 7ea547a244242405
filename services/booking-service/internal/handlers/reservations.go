package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jvstudio/salonbook/libs/httpx"
	"github.com/jvstudio/salonbook/services/booking-service/internal/booking"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

type clientPayload struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
	BirthDate  string `json:"birth_date"`
}

func (p clientPayload) data(loc *time.Location) (model.ClientData, error) {
	d := model.ClientData{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Phone:      p.Phone,
		Email:      p.Email,
		NationalID: p.NationalID,
	}
	if strings.TrimSpace(p.BirthDate) != "" {
		bd, err := clock.ParseDate(p.BirthDate, loc)
		if err != nil {
			return d, err
		}
		d.BirthDate = &bd
	}
	return d, nil
}

type createReservationRequest struct {
	Client    clientPayload `json:"client"`
	ServiceID string        `json:"service_id"`
	StaffID   string        `json:"staff_id"`
	Date      string        `json:"date"`
	Time      string        `json:"time"`
	Price     string        `json:"price"`
}

type createReservationResponse struct {
	ReservationID string `json:"reservation_id"`
	ClientID      string `json:"client_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	PriceCharged  string `json:"price_charged"`
	Status        string `json:"status"`
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	loc := h.cfg.Settings.Location
	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	day, err := clock.ParseDate(req.Date, loc)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	tod, err := clock.ParseTimeOfDay(req.Time)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	client, err := req.Client.data(loc)
	if err != nil {
		badRequest(w, "birth_date: "+err.Error())
		return
	}

	conf, err := h.committer.Commit(r.Context(), booking.Request{
		Client:         client,
		ServiceID:      req.ServiceID,
		Staff:          model.ParseStaffSelector(req.StaffID),
		Date:           day,
		Time:           tod,
		Price:          req.Price,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	switch {
	case err == nil:
	case errors.Is(err, booking.ErrSlotUnavailable):
		httpx.WriteError(w, http.StatusConflict, "slot_unavailable", booking.ErrSlotUnavailable.Error())
		return
	case errors.Is(err, booking.ErrIdempotencyKeyReused):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "idempotency_key_reused", err.Error())
		return
	case errors.Is(err, booking.ErrInvalidRequest),
		errors.Is(err, booking.ErrServiceNotFound),
		errors.Is(err, booking.ErrStaffNotFound):
		badRequest(w, err.Error())
		return
	default:
		h.internalError(w, r, "reservation commit failed", err)
		return
	}

	status := http.StatusCreated
	if conf.Replayed {
		status = http.StatusOK
	}
	res := conf.Reservation
	httpx.WriteJSON(w, status, createReservationResponse{
		ReservationID: res.ID,
		ClientID:      res.ClientID,
		StaffID:       res.StaffID,
		ServiceID:     res.ServiceID,
		StartTime:     res.Start.In(loc).Format(time.RFC3339),
		EndTime:       res.End.In(loc).Format(time.RFC3339),
		PriceCharged:  res.PriceCharged,
		Status:        string(res.Status),
	})
}

type clientResponse struct {
	ClientID  string `json:"client_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Created   bool   `json:"created"`
}

func (h *Handler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req clientPayload
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	data, err := req.data(h.cfg.Settings.Location)
	if err != nil {
		badRequest(w, "birth_date: "+err.Error())
		return
	}
	c, created, err := h.clients.Register(r.Context(), data)
	if errors.Is(err, booking.ErrInvalidRequest) {
		badRequest(w, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, r, "client registration failed", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, clientResponse{
		ClientID:  c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Created:   created,
	})
}
