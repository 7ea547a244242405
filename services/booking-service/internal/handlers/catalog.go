package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jvstudio/salonbook/libs/httpx"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

type serviceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	CategoryID      int64  `json:"category_id,omitempty"`
	CategoryName    string `json:"category_name,omitempty"`
}

func toServiceItems(services []model.Service) []serviceItem {
	out := make([]serviceItem, 0, len(services))
	for _, s := range services {
		out = append(out, serviceItem{
			ID:              s.ID,
			Name:            s.Name,
			Description:     s.Description,
			DurationMinutes: s.DurationMinutes,
			Price:           s.Price,
			CategoryID:      s.CategoryID,
			CategoryName:    s.CategoryName,
		})
	}
	return out
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(w, "category_id must be a positive integer")
			return
		}
		categoryID = id
	}
	services, err := h.catalog.Services(r.Context(), categoryID)
	if err != nil {
		h.internalError(w, r, "list services failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": toServiceItems(services)})
}

type categoryItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.internalError(w, r, "list categories failed", err)
		return
	}
	out := make([]categoryItem, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryItem{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// CategoryServices resolves a marketing category by slug and lists the
// services filed under it.
func (h *Handler) CategoryServices(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.cfg.Settings.Category(chi.URLParam(r, "slug"))
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}
	services, err := h.catalog.ServicesInCategory(r.Context(), cat.Title)
	if err != nil {
		h.internalError(w, r, "list category services failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"category": map[string]string{
			"slug":        cat.Slug,
			"title":       cat.Title,
			"description": cat.Description,
			"image":       cat.Image,
		},
		"services": toServiceItems(services),
	})
}

type staffItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *Handler) Staff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.catalog.Staff(r.Context())
	if err != nil {
		h.internalError(w, r, "list staff failed", err)
		return
	}
	out := make([]staffItem, 0, len(staff))
	for _, s := range staff {
		out = append(out, staffItem{ID: s.ID, Name: s.Name, Role: s.Role})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"staff": out})
}
