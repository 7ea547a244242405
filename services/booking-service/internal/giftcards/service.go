package giftcards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/metrics"
)

const maxCodeAttempts = 5

// CheckoutSession is a hosted payment page for one gift card.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutProvider creates hosted checkout sessions.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, card GiftCard, idempotencyKey string) (CheckoutSession, error)
}

type Config struct {
	Prefix   string
	Currency string
	Validity time.Duration
}

type IssueRequest struct {
	AmountCents int64
	FromName    string
	ToName      string
	Message     string
	PackageID   string
}

type Service struct {
	store    Store
	payments CheckoutProvider
	cfg      Config
	now      func() time.Time
	newCode  func(prefix string) (string, error)
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService wires the gift card flows. payments may be nil, in which case
// cards are issued already active and checkout is unavailable.
func NewService(store Store, payments CheckoutProvider, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Service {
	if cfg.Prefix == "" {
		cfg.Prefix = "JV"
	}
	if cfg.Currency == "" {
		cfg.Currency = "pen"
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 365 * 24 * time.Hour
	}
	return &Service{
		store:    store,
		payments: payments,
		cfg:      cfg,
		now:      time.Now,
		newCode:  NewCode,
		logger:   logger,
		metrics:  m,
	}
}

func (s *Service) Packages(ctx context.Context) ([]Package, error) {
	return s.store.ListPackages(ctx)
}

// Issue creates a gift card whose balance equals the purchased amount.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (GiftCard, error) {
	req.FromName = strings.TrimSpace(req.FromName)
	req.ToName = strings.TrimSpace(req.ToName)
	req.Message = strings.TrimSpace(req.Message)
	req.PackageID = strings.TrimSpace(req.PackageID)

	if req.AmountCents <= 0 {
		return GiftCard{}, ErrInvalidAmount
	}
	if req.FromName == "" || req.ToName == "" {
		return GiftCard{}, fmt.Errorf("%w: purchaser and recipient names are required", ErrInvalidRequest)
	}
	if req.PackageID != "" {
		if _, err := s.store.Package(ctx, req.PackageID); err != nil {
			return GiftCard{}, err
		}
	}

	status := StatusActive
	if s.payments != nil {
		status = StatusPendingPayment
	}
	now := s.now().UTC()
	card := GiftCard{
		InitialAmountCents: req.AmountCents,
		BalanceCents:       req.AmountCents,
		Currency:           s.cfg.Currency,
		FromName:           req.FromName,
		ToName:             req.ToName,
		Message:            req.Message,
		PackageID:          req.PackageID,
		Status:             status,
		ExpiresAt:          now.Add(s.cfg.Validity),
	}

	for attempt := 1; ; attempt++ {
		code, err := s.newCode(s.cfg.Prefix)
		if err != nil {
			return GiftCard{}, err
		}
		card.Code = code
		created, err := s.store.CreateGiftCard(ctx, card, IssuedEvent)
		if errors.Is(err, ErrCodeTaken) && attempt < maxCodeAttempts {
			s.logger.WarnContext(ctx, "gift card code collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return GiftCard{}, fmt.Errorf("create gift card: %w", err)
		}
		s.metrics.ObserveGiftCard(string(created.Status))
		s.logger.InfoContext(ctx, "gift card issued", "gift_card_id", created.ID, "status", created.Status, "amount_cents", created.InitialAmountCents)
		return created, nil
	}
}

// Checkout opens a payment session for a card awaiting payment.
func (s *Service) Checkout(ctx context.Context, code, idempotencyKey string) (CheckoutSession, error) {
	if s.payments == nil {
		return CheckoutSession{}, ErrPaymentsDisabled
	}
	card, err := s.store.GiftCardByCode(ctx, NormalizeCode(code))
	if err != nil {
		return CheckoutSession{}, err
	}
	if card.Status != StatusPendingPayment {
		return CheckoutSession{}, ErrNotPayable
	}
	sess, err := s.payments.CreateCheckout(ctx, card, idempotencyKey)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	if err := s.store.SetCheckoutSession(ctx, card.Code, sess.ID); err != nil {
		return CheckoutSession{}, fmt.Errorf("persist checkout session: %w", err)
	}
	s.logger.InfoContext(ctx, "gift card checkout created", "gift_card_id", card.ID, "checkout_session_id", sess.ID)
	return sess, nil
}

// CompletePayment activates the card paid by a provider event. Replayed
// events are reported as not applied.
func (s *Service) CompletePayment(ctx context.Context, provider, eventID, eventType, code string) (bool, error) {
	code = NormalizeCode(code)
	if code == "" {
		return false, fmt.Errorf("%w: missing gift card code", ErrInvalidRequest)
	}
	applied, err := s.store.ActivatePaid(ctx, provider, eventID, eventType, code, ActivatedEvent)
	if err != nil {
		return false, fmt.Errorf("activate gift card: %w", err)
	}
	s.logger.InfoContext(ctx, "gift card payment processed", "provider_event_id", eventID, "applied", applied)
	return applied, nil
}
