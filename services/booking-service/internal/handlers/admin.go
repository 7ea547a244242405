package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/report"
)

// AgendaExport streams the day's agenda as an .xlsx workbook.
func (h *Handler) AgendaExport(w http.ResponseWriter, r *http.Request) {
	loc := h.cfg.Settings.Location
	day, err := clock.ParseDate(r.URL.Query().Get("date"), loc)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	from, to := clock.DayBounds(day, loc)
	entries, err := h.catalog.Agenda(r.Context(), from, to)
	if err != nil {
		h.internalError(w, r, "load agenda failed", err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteAgenda(&buf, day, entries, loc); err != nil {
		h.internalError(w, r, "render agenda failed", err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="agenda-%s.xlsx"`, clock.FormatDate(day)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
