// Package handlers exposes the booking service over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jvstudio/salonbook/libs/auth"
	"github.com/jvstudio/salonbook/libs/httpx"
	"github.com/jvstudio/salonbook/services/booking-service/internal/availability"
	"github.com/jvstudio/salonbook/services/booking-service/internal/booking"
	"github.com/jvstudio/salonbook/services/booking-service/internal/giftcards"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
	"github.com/jvstudio/salonbook/services/booking-service/internal/settings"
)

type Availability interface {
	Compute(ctx context.Context, q availability.Query) (availability.Result, error)
}

type Committer interface {
	Commit(ctx context.Context, req booking.Request) (booking.Confirmation, error)
}

type ClientRegistry interface {
	Register(ctx context.Context, data model.ClientData) (model.Client, bool, error)
}

type Catalog interface {
	Services(ctx context.Context, categoryID int64) ([]model.Service, error)
	ServicesInCategory(ctx context.Context, title string) ([]model.Service, error)
	Categories(ctx context.Context) ([]model.Category, error)
	Staff(ctx context.Context) ([]model.StaffMember, error)
	Agenda(ctx context.Context, from, to time.Time) ([]model.AgendaEntry, error)
}

type GiftCards interface {
	Packages(ctx context.Context) ([]giftcards.Package, error)
	Issue(ctx context.Context, req giftcards.IssueRequest) (giftcards.GiftCard, error)
	Checkout(ctx context.Context, code, idempotencyKey string) (giftcards.CheckoutSession, error)
	CompletePayment(ctx context.Context, provider, eventID, eventType, code string) (bool, error)
}

type Config struct {
	Settings         settings.Settings
	AdminJWTSecret   string
	WebhookSecret    string
	WebhookTolerance time.Duration
	// PublicMiddleware wraps the public API only (CORS, rate limiting).
	PublicMiddleware []httpx.Middleware
}

type Handler struct {
	availability Availability
	committer    Committer
	clients      ClientRegistry
	catalog      Catalog
	giftCards    GiftCards
	cfg          Config
	logger       *slog.Logger
}

func New(avail Availability, committer Committer, clients ClientRegistry, catalog Catalog, gc GiftCards, cfg Config, logger *slog.Logger) *Handler {
	if cfg.Settings.Location == nil {
		cfg.Settings.Location = time.UTC
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = 5 * time.Minute
	}
	return &Handler{
		availability: avail,
		committer:    committer,
		clients:      clients,
		catalog:      catalog,
		giftCards:    gc,
		cfg:          cfg,
		logger:       logger,
	}
}

// Routes mounts the API under /api/v1.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/public", func(pub chi.Router) {
			for _, m := range h.cfg.PublicMiddleware {
				pub.Use(m)
			}
			pub.Get("/slots", h.Slots)
			pub.Post("/reservations", h.CreateReservation)
			pub.Post("/clients", h.RegisterClient)
			pub.Get("/services", h.Services)
			pub.Get("/categories", h.Categories)
			pub.Get("/categories/{slug}/services", h.CategoryServices)
			pub.Get("/staff", h.Staff)
			pub.Get("/packages", h.Packages)
			pub.Post("/gift-cards", h.IssueGiftCard)
			pub.Post("/gift-cards/{code}/checkout", h.GiftCardCheckout)
		})

		// Signature verification is the authentication here.
		api.Post("/webhooks/stripe", h.StripeWebhook)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(auth.RequireRole(h.cfg.AdminJWTSecret, "owner", "admin"))
			admin.Get("/agenda.xlsx", h.AgendaExport)
		})
	})
	return r
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", msg)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
	httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
}
