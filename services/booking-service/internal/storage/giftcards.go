package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jvstudio/salonbook/libs/db"
	"github.com/jvstudio/salonbook/services/booking-service/internal/giftcards"
	"github.com/jvstudio/salonbook/services/booking-service/internal/outbox"
)

// GiftCards adapts Store to giftcards.Store.
type GiftCards struct {
	*Store
}

func (s *Store) GiftCards() GiftCards { return GiftCards{Store: s} }

func (g GiftCards) ListPackages(ctx context.Context) ([]giftcards.Package, error) {
	rows, err := g.db.Query(ctx, `
		SELECT p.id::text, p.name, p.description, p.price_cents,
			COALESCE(i.service_id::text, ''), COALESCE(sv.name, ''), COALESCE(i.quantity, 0)
		FROM packages p
		LEFT JOIN package_items i ON i.package_id = p.id
		LEFT JOIN services sv ON sv.id = i.service_id
		WHERE p.is_active
		ORDER BY p.price_cents, p.id, i.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []giftcards.Package{}
	for rows.Next() {
		var (
			p    giftcards.Package
			item giftcards.PackageItem
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &item.ServiceID, &item.ServiceName, &item.Quantity); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != p.ID {
			out = append(out, p)
		}
		if item.ServiceID != "" {
			last := &out[len(out)-1]
			last.Items = append(last.Items, item)
		}
	}
	return out, rows.Err()
}

func (g GiftCards) Package(ctx context.Context, id string) (giftcards.Package, error) {
	if _, err := uuid.Parse(id); err != nil {
		return giftcards.Package{}, giftcards.ErrPackageNotFound
	}
	var p giftcards.Package
	err := g.db.QueryRow(ctx, `
		SELECT id::text, name, description, price_cents
		FROM packages
		WHERE id = $1 AND is_active
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents)
	if db.IsNotFound(err) {
		return giftcards.Package{}, giftcards.ErrPackageNotFound
	}
	return p, err
}

func (g GiftCards) CreateGiftCard(ctx context.Context, card giftcards.GiftCard, issued func(giftcards.GiftCard) (outbox.Event, error)) (giftcards.GiftCard, error) {
	err := db.InTx(ctx, g.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO gift_cards
				(code, initial_amount_cents, balance_cents, currency, from_name, to_name, message, package_id, status, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9, $10)
			RETURNING id::text, created_at
		`, card.Code, card.InitialAmountCents, card.BalanceCents, card.Currency, card.FromName, card.ToName,
			card.Message, card.PackageID, string(card.Status), card.ExpiresAt).Scan(&card.ID, &card.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return giftcards.ErrCodeTaken
			}
			return err
		}
		evt, err := issued(card)
		if err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return giftcards.GiftCard{}, err
	}
	return card, nil
}

const giftCardColumns = `id::text, code, initial_amount_cents, balance_cents, currency, from_name, to_name, message,
	COALESCE(package_id::text, ''), status, COALESCE(checkout_session_id, ''), expires_at, created_at`

func scanGiftCard(row pgx.Row) (giftcards.GiftCard, error) {
	var (
		c      giftcards.GiftCard
		status string
	)
	err := row.Scan(&c.ID, &c.Code, &c.InitialAmountCents, &c.BalanceCents, &c.Currency, &c.FromName, &c.ToName,
		&c.Message, &c.PackageID, &status, &c.CheckoutSessionID, &c.ExpiresAt, &c.CreatedAt)
	c.Status = giftcards.Status(status)
	return c, err
}

func (g GiftCards) GiftCardByCode(ctx context.Context, code string) (giftcards.GiftCard, error) {
	c, err := scanGiftCard(g.db.QueryRow(ctx, `SELECT `+giftCardColumns+` FROM gift_cards WHERE code = $1`, code))
	if db.IsNotFound(err) {
		return giftcards.GiftCard{}, giftcards.ErrNotFound
	}
	return c, err
}

func (g GiftCards) SetCheckoutSession(ctx context.Context, code, sessionID string) error {
	tag, err := g.db.Exec(ctx, `
		UPDATE gift_cards SET checkout_session_id = $2 WHERE code = $1
	`, code, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return giftcards.ErrNotFound
	}
	return nil
}

// ActivatePaid dedupes on (provider, event id) before touching the card, so
// a replayed webhook is a no-op.
func (g GiftCards) ActivatePaid(ctx context.Context, provider, eventID, eventType, code string, activated func(giftcards.GiftCard) (outbox.Event, error)) (bool, error) {
	applied := false
	err := db.InTx(ctx, g.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO provider_events (provider, event_id, event_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (provider, event_id) DO NOTHING
		`, provider, eventID, eventType)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		card, err := scanGiftCard(tx.QueryRow(ctx, `
			UPDATE gift_cards
			SET status = 'active', activated_at = now()
			WHERE code = $1 AND status = 'pending_payment'
			RETURNING `+giftCardColumns, code))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		evt, err := activated(card)
		if err != nil {
			return err
		}
		if err := outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
