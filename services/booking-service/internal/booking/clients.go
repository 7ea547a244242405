package booking

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

// NormalizeClient trims every field, lower-cases the email and strips
// separators from the phone, then checks the required fields.
func NormalizeClient(c model.ClientData) (model.ClientData, error) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.NationalID = strings.TrimSpace(c.NationalID)
	c.Phone = normalizePhone(c.Phone)

	switch {
	case c.FirstName == "":
		return c, fmt.Errorf("%w: first name is required", ErrInvalidRequest)
	case c.Phone == "":
		return c, fmt.Errorf("%w: phone is required", ErrInvalidRequest)
	case c.Email == "":
		return c, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil || !strings.Contains(c.Email, "@") {
		return c, fmt.Errorf("%w: email is not valid", ErrInvalidRequest)
	}
	return c, nil
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Clients registers booking clients. A client matching an existing record by
// national id, email or phone is that record (first match wins, no merging).
type Clients struct {
	store  Store
	logger *slog.Logger
}

func NewClients(store Store, logger *slog.Logger) *Clients {
	return &Clients{store: store, logger: logger}
}

func (c *Clients) Register(ctx context.Context, data model.ClientData) (model.Client, bool, error) {
	data, err := NormalizeClient(data)
	if err != nil {
		return model.Client{}, false, err
	}
	var (
		client  model.Client
		created bool
	)
	err = c.store.InTx(ctx, func(tx Tx) error {
		var err error
		client, created, err = tx.FindOrCreateClient(ctx, data)
		return err
	})
	if err != nil {
		return model.Client{}, false, fmt.Errorf("register client: %w", err)
	}
	c.logger.InfoContext(ctx, "client registered", "client_id", client.ID, "created", created)
	return client, created, nil
}
