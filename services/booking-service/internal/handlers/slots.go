package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jvstudio/salonbook/libs/httpx"
	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

type slotsResponse struct {
	Date   string   `json:"date"`
	Status string   `json:"status"`
	Slots  []string `json:"slots"`
}

// Slots answers GET /slots?date=YYYY-MM-DD&staff_id=<id|any>&duration_minutes=N.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	loc := h.cfg.Settings.Location
	q := r.URL.Query()

	day, err := clock.ParseDate(q.Get("date"), loc)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	minutes, err := strconv.Atoi(q.Get("duration_minutes"))
	if err != nil || minutes <= 0 || minutes > int(availability.MaxDuration/time.Minute) {
		badRequest(w, "duration_minutes must be between 1 and 1440")
		return
	}

	res, err := h.availability.Compute(r.Context(), availability.Query{
		Date:     day,
		Staff:    model.ParseStaffSelector(q.Get("staff_id")),
		Duration: time.Duration(minutes) * time.Minute,
	})
	switch {
	case err == nil:
	case res.Status == availability.StatusUnavailable:
		httpx.WriteJSON(w, http.StatusServiceUnavailable, slotsResponse{
			Date:   clock.FormatDate(day),
			Status: string(availability.StatusUnavailable),
			Slots:  []string{},
		})
		return
	case errors.Is(err, availability.ErrUnknownStaff):
		badRequest(w, "unknown staff member")
		return
	case errors.Is(err, availability.ErrDateOutOfRange), errors.Is(err, availability.ErrInvalidDuration):
		badRequest(w, err.Error())
		return
	default:
		h.internalError(w, r, "availability failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		Date:   clock.FormatDate(day),
		Status: string(res.Status),
		Slots:  res.Formatted(loc),
	})
}
