package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jvstudio/salonbook/libs/httpx"
	"github.com/jvstudio/salonbook/services/booking-service/internal/giftcards"
)

type packageItem struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	Quantity    int    `json:"quantity"`
}

type packageResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	PriceCents  int64         `json:"price_cents"`
	Items       []packageItem `json:"items"`
}

func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.giftCards.Packages(r.Context())
	if err != nil {
		h.internalError(w, r, "list packages failed", err)
		return
	}
	out := make([]packageResponse, 0, len(pkgs))
	for _, p := range pkgs {
		items := make([]packageItem, 0, len(p.Items))
		for _, it := range p.Items {
			items = append(items, packageItem{ServiceID: it.ServiceID, ServiceName: it.ServiceName, Quantity: it.Quantity})
		}
		out = append(out, packageResponse{ID: p.ID, Name: p.Name, Description: p.Description, PriceCents: p.PriceCents, Items: items})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"packages": out})
}

type issueGiftCardRequest struct {
	AmountCents int64  `json:"amount_cents"`
	FromName    string `json:"from_name"`
	ToName      string `json:"to_name"`
	Message     string `json:"message"`
	PackageID   string `json:"package_id"`
}

type giftCardResponse struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	AmountCents  int64  `json:"amount_cents"`
	BalanceCents int64  `json:"balance_cents"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	ExpiresAt    string `json:"expires_at"`
}

func (h *Handler) IssueGiftCard(w http.ResponseWriter, r *http.Request) {
	var req issueGiftCardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	card, err := h.giftCards.Issue(r.Context(), giftcards.IssueRequest{
		AmountCents: req.AmountCents,
		FromName:    req.FromName,
		ToName:      req.ToName,
		Message:     req.Message,
		PackageID:   req.PackageID,
	})
	switch {
	case err == nil:
	case errors.Is(err, giftcards.ErrInvalidAmount), errors.Is(err, giftcards.ErrInvalidRequest), errors.Is(err, giftcards.ErrPackageNotFound):
		badRequest(w, err.Error())
		return
	default:
		h.internalError(w, r, "gift card issue failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, giftCardResponse{
		ID:           card.ID,
		Code:         card.Code,
		AmountCents:  card.InitialAmountCents,
		BalanceCents: card.BalanceCents,
		Currency:     card.Currency,
		Status:       string(card.Status),
		ExpiresAt:    card.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GiftCardCheckout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.giftCards.Checkout(r.Context(), chi.URLParam(r, "code"), strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	switch {
	case err == nil:
	case errors.Is(err, giftcards.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "gift card not found")
		return
	case errors.Is(err, giftcards.ErrNotPayable):
		httpx.WriteError(w, http.StatusConflict, "not_payable", err.Error())
		return
	case errors.Is(err, giftcards.ErrPaymentsDisabled):
		httpx.WriteError(w, http.StatusServiceUnavailable, "payments_disabled", err.Error())
		return
	default:
		h.logger.ErrorContext(r.Context(), "gift card checkout failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "payment_provider_error", "failed to create checkout session")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"checkout_session_id": sess.ID, "url": sess.URL})
}

// StripeWebhook activates gift cards on paid checkout events: a completed
// session already marked paid, or a delayed payment that succeeded. Other
// events are acknowledged and ignored.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.cfg.WebhookSecret) == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "webhook_disabled", "stripe webhook not configured")
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		badRequest(w, "missing Stripe-Signature header")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}
	evt, err := giftcards.ParseWebhook(body, sig, h.cfg.WebhookSecret, h.cfg.WebhookTolerance)
	if err != nil {
		h.logger.WarnContext(r.Context(), "stripe webhook rejected", "err", err)
		badRequest(w, "invalid signature")
		return
	}
	h.logger.InfoContext(r.Context(), "payment provider event received",
		"provider", giftcards.ProviderStripe,
		"provider_event_id", evt.ID,
		"event_type", evt.Type,
	)

	if !evt.PaidCheckout() {
		if evt.Type == giftcards.EventCheckoutCompleted {
			h.logger.InfoContext(r.Context(), "checkout completed without payment yet",
				"checkout_session_id", evt.SessionID,
				"payment_status", evt.PaymentStatus,
			)
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if evt.Code == "" {
		h.logger.WarnContext(r.Context(), "checkout session without gift card code", "checkout_session_id", evt.SessionID)
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	applied, err := h.giftCards.CompletePayment(r.Context(), giftcards.ProviderStripe, evt.ID, evt.Type, evt.Code)
	if err != nil {
		h.internalError(w, r, "gift card activation failed", err)
		return
	}
	status := "duplicate"
	if applied {
		status = "applied"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
