package giftcards

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
)

type memStore struct {
	mu        sync.Mutex
	cards     map[string]GiftCard
	packages  map[string]Package
	processed map[string]bool
	events    []outbox.Event
}

func newMemStore() *memStore {
	return &memStore{
		cards:     make(map[string]GiftCard),
		packages:  map[string]Package{"pkg-1": {ID: "pkg-1", Name: "Día de spa", PriceCents: 25000}},
		processed: make(map[string]bool),
	}
}

func (m *memStore) ListPackages(context.Context) ([]Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Package
	for _, p := range m.packages {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) Package(_ context.Context, id string) (Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return Package{}, ErrPackageNotFound
	}
	return p, nil
}

func (m *memStore) CreateGiftCard(_ context.Context, card GiftCard, issued func(GiftCard) (outbox.Event, error)) (GiftCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.cards[card.Code]; dup {
		return GiftCard{}, ErrCodeTaken
	}
	card.ID = uuid.NewString()
	card.CreatedAt = time.Now()
	evt, err := issued(card)
	if err != nil {
		return GiftCard{}, err
	}
	m.cards[card.Code] = card
	m.events = append(m.events, evt)
	return card, nil
}

func (m *memStore) GiftCardByCode(_ context.Context, code string) (GiftCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[code]
	if !ok {
		return GiftCard{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) SetCheckoutSession(_ context.Context, code, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cards[code]
	c.CheckoutSessionID = sessionID
	m.cards[code] = c
	return nil
}

func (m *memStore) ActivatePaid(_ context.Context, provider, eventID, _ string, code string, activated func(GiftCard) (outbox.Event, error)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + "/" + eventID
	if m.processed[key] {
		return false, nil
	}
	m.processed[key] = true
	c, ok := m.cards[code]
	if !ok || c.Status != StatusPendingPayment {
		return false, nil
	}
	c.Status = StatusActive
	m.cards[code] = c
	evt, err := activated(c)
	if err != nil {
		return false, err
	}
	m.events = append(m.events, evt)
	return true, nil
}

type fakeCheckout struct {
	calls []GiftCard
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, card GiftCard, _ string) (CheckoutSession, error) {
	f.calls = append(f.calls, card)
	return CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func validRequest() IssueRequest {
	return IssueRequest{AmountCents: 15000, FromName: "María", ToName: "José", Message: "Feliz cumpleaños"}
}

func TestNewCodeFormat(t *testing.T) {
	re := regexp.MustCompile(`^JV-[A-Z0-9]{6}-[A-Z0-9]{4}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewCode("jv")
		require.NoError(t, err)
		assert.Regexp(t, re, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestIssueWithoutPaymentsIsActive(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, Config{Validity: 24 * time.Hour}, discard(), nil)
	fixed := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	card, err := svc.Issue(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusActive, card.Status)
	assert.Equal(t, int64(15000), card.InitialAmountCents)
	assert.Equal(t, card.InitialAmountCents, card.BalanceCents)
	assert.Equal(t, "pen", card.Currency)
	assert.True(t, card.ExpiresAt.Equal(fixed.Add(24*time.Hour)))

	require.Len(t, store.events, 1)
	assert.Equal(t, outbox.EventGiftCardIssued, store.events[0].EventType)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(store.events[0].Payload, &payload))
	assert.Equal(t, card.Code, payload["code"])
	assert.Equal(t, card.ID, payload["gift_card_id"])
}

func TestIssueWithPaymentsAwaitsPayment(t *testing.T) {
	svc := NewService(newMemStore(), &fakeCheckout{}, Config{}, discard(), nil)
	card, err := svc.Issue(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, card.Status)
}

func TestIssueValidation(t *testing.T) {
	svc := NewService(newMemStore(), nil, Config{}, discard(), nil)
	ctx := context.Background()

	req := validRequest()
	req.AmountCents = 0
	_, err := svc.Issue(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	req = validRequest()
	req.ToName = "  "
	_, err = svc.Issue(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req = validRequest()
	req.PackageID = "pkg-missing"
	_, err = svc.Issue(ctx, req)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	req = validRequest()
	req.PackageID = "pkg-1"
	card, err := svc.Issue(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "pkg-1", card.PackageID)
}

func TestIssueRetriesCodeCollisions(t *testing.T) {
	store := newMemStore()
	store.cards["JV-AAAAAA-AAAA"] = GiftCard{Code: "JV-AAAAAA-AAAA"}
	svc := NewService(store, nil, Config{}, discard(), nil)

	codes := []string{"JV-AAAAAA-AAAA", "JV-AAAAAA-AAAA", "JV-BBBBBB-BBBB"}
	svc.newCode = func(string) (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	card, err := svc.Issue(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "JV-BBBBBB-BBBB", card.Code)

	svc.newCode = func(string) (string, error) { return "JV-AAAAAA-AAAA", nil }
	_, err = svc.Issue(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrCodeTaken)
}

func TestCheckoutAndCompletePayment(t *testing.T) {
	store := newMemStore()
	payments := &fakeCheckout{}
	svc := NewService(store, payments, Config{}, discard(), nil)
	ctx := context.Background()

	card, err := svc.Issue(ctx, validRequest())
	require.NoError(t, err)

	sess, err := svc.Checkout(ctx, "  "+card.Code+" ", "")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	require.Len(t, payments.calls, 1)
	assert.Equal(t, "cs_test_1", store.cards[card.Code].CheckoutSessionID)

	applied, err := svc.CompletePayment(ctx, ProviderStripe, "evt_1", "checkout.session.completed", card.Code)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusActive, store.cards[card.Code].Status)

	applied, err = svc.CompletePayment(ctx, ProviderStripe, "evt_1", "checkout.session.completed", card.Code)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = svc.Checkout(ctx, card.Code, "")
	assert.ErrorIs(t, err, ErrNotPayable)

	assert.Len(t, store.events, 2)
	assert.Equal(t, outbox.EventGiftCardActivated, store.events[1].EventType)
}

func TestCheckoutWithoutPayments(t *testing.T) {
	svc := NewService(newMemStore(), nil, Config{}, discard(), nil)
	_, err := svc.Checkout(context.Background(), "JV-X", "")
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
}

func TestParseWebhook(t *testing.T) {
	const secret = "whsec_test"
	now := time.Now()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_123",
		"object":      "event",
		"created":     now.Unix(),
		"type":        "checkout.session.completed",
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_9",
				"object":         "checkout.session",
				"payment_status": "paid",
				"metadata":       map[string]any{MetadataCode: "JV-ABCDEF-GHJK"},
			},
		},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	evt, err := ParseWebhook(payload, signed.Header, secret, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", evt.ID)
	assert.Equal(t, "checkout.session.completed", evt.Type)
	assert.Equal(t, "cs_test_9", evt.SessionID)
	assert.Equal(t, "JV-ABCDEF-GHJK", evt.Code)
	assert.Equal(t, "paid", evt.PaymentStatus)
	assert.True(t, evt.PaidCheckout())

	_, err = ParseWebhook(payload, signed.Header, "whsec_other", 5*time.Minute)
	assert.Error(t, err)
}

func TestPaidCheckout(t *testing.T) {
	cases := []struct {
		evt  WebhookEvent
		paid bool
	}{
		{WebhookEvent{Type: EventCheckoutCompleted, PaymentStatus: "paid"}, true},
		{WebhookEvent{Type: EventCheckoutCompleted, PaymentStatus: "unpaid"}, false},
		{WebhookEvent{Type: EventCheckoutAsyncSucceeded, PaymentStatus: "paid"}, true},
		{WebhookEvent{Type: "checkout.session.async_payment_failed", PaymentStatus: "unpaid"}, false},
		{WebhookEvent{Type: "customer.created"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.paid, tc.evt.PaidCheckout(), "%s/%s", tc.evt.Type, tc.evt.PaymentStatus)
	}
}
