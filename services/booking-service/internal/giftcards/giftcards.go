// Package giftcards issues prepaid gift cards and activates them once the
// purchase is paid.
package giftcards

import (
	"context"
	"errors"
	"time"

	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
)

var (
	ErrInvalidAmount    = errors.New("gift card amount must be positive")
	ErrInvalidRequest   = errors.New("invalid gift card request")
	ErrNotFound         = errors.New("gift card not found")
	ErrPackageNotFound  = errors.New("package not found")
	ErrCodeTaken        = errors.New("gift card code already exists")
	ErrNotPayable       = errors.New("gift card is not awaiting payment")
	ErrPaymentsDisabled = errors.New("payments are not configured")
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusRedeemed       Status = "redeemed"
	StatusExpired        Status = "expired"
)

type GiftCard struct {
	ID                 string
	Code               string
	InitialAmountCents int64
	BalanceCents       int64
	Currency           string
	FromName           string
	ToName             string
	Message            string
	PackageID          string
	Status             Status
	CheckoutSessionID  string
	ExpiresAt          time.Time
	CreatedAt          time.Time
}

type Package struct {
	ID          string
	Name        string
	Description string
	PriceCents  int64
	Items       []PackageItem
}

type PackageItem struct {
	ServiceID   string
	ServiceName string
	Quantity    int
}

// Store persists gift cards. Writes that change state also enqueue their
// outbox event in the same transaction.
type Store interface {
	ListPackages(ctx context.Context) ([]Package, error)
	// Package returns ErrPackageNotFound for unknown or inactive ids.
	Package(ctx context.Context, id string) (Package, error)
	// CreateGiftCard stores card with the event issued builds from the stored
	// row. It returns ErrCodeTaken when the code collides.
	CreateGiftCard(ctx context.Context, card GiftCard, issued func(GiftCard) (outbox.Event, error)) (GiftCard, error)
	GiftCardByCode(ctx context.Context, code string) (GiftCard, error)
	SetCheckoutSession(ctx context.Context, code, sessionID string) error
	// ActivatePaid records the provider event and activates the pending card.
	// It returns false when the event was already processed or the card was
	// not pending.
	ActivatePaid(ctx context.Context, provider, eventID, eventType, code string, activated func(GiftCard) (outbox.Event, error)) (bool, error)
}

type issuedPayload struct {
	GiftCardID  string `json:"gift_card_id"`
	Code        string `json:"code"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	PackageID   string `json:"package_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

func eventFor(eventType string, card GiftCard) (outbox.Event, error) {
	return outbox.NewEvent("gift_card", card.ID, eventType, issuedPayload{
		GiftCardID:  card.ID,
		Code:        card.Code,
		AmountCents: card.InitialAmountCents,
		Currency:    card.Currency,
		Status:      string(card.Status),
		PackageID:   card.PackageID,
		ExpiresAt:   card.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// IssuedEvent builds the giftcard.issued.v1 event for card.
func IssuedEvent(card GiftCard) (outbox.Event, error) {
	return eventFor(outbox.EventGiftCardIssued, card)
}

// ActivatedEvent builds the giftcard.activated.v1 event for card.
func ActivatedEvent(card GiftCard) (outbox.Event, error) {
	return eventFor(outbox.EventGiftCardActivated, card)
}
