package giftcards

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	ProviderStripe = "stripe"
	// MetadataCode carries the gift card code on the checkout session.
	MetadataCode = "gift_card_code"
)

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
}

// StripeCheckout creates Stripe Checkout sessions in payment mode.
type StripeCheckout struct {
	client checkoutsession.Client
	cfg    StripeConfig
}

func NewStripeCheckout(cfg StripeConfig) *StripeCheckout {
	return &StripeCheckout{
		client: checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey},
		cfg:    cfg,
	}
}

func (c *StripeCheckout) CreateCheckout(ctx context.Context, card GiftCard, idempotencyKey string) (CheckoutSession, error) {
	currency := card.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		ClientReferenceID: stripe.String(card.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(currency)),
					UnitAmount: stripe.Int64(card.InitialAmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Gift card for %s", card.ToName)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{MetadataCode: card.Code},
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}
	sess, err := c.client.New(params)
	if err != nil {
		return CheckoutSession{}, err
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
)

// WebhookEvent is the part of a verified Stripe event the service acts on.
type WebhookEvent struct {
	ID            string
	Type          string
	Created       time.Time
	SessionID     string
	Code          string
	PaymentStatus string
}

// PaidCheckout reports whether the event confirms the money arrived. A
// completed session paid with a delayed method is still "unpaid"; its
// async_payment_succeeded event follows later.
func (e WebhookEvent) PaidCheckout() bool {
	switch e.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded:
		return e.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
	}
	return false
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// checkout session fields. Events of other types come back with empty
// session fields.
func ParseWebhook(payload []byte, signature, secret string, tolerance time.Duration) (WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, err
	}
	out := WebhookEvent{ID: evt.ID, Type: string(evt.Type), Created: time.Unix(evt.Created, 0).UTC()}
	if strings.HasPrefix(out.Type, "checkout.session.") && evt.Data != nil {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = sess.ID
		out.Code = sess.Metadata[MetadataCode]
		out.PaymentStatus = string(sess.PaymentStatus)
	}
	return out, nil
}
