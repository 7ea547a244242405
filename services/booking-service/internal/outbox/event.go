package outbox

import (
	"encoding/json"
	"fmt"
)

// Event is a domain event written in the same transaction as the state change
// it describes. The Kafka topic equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventReservationScheduled = "booking.reservation.scheduled.v1"
	EventGiftCardIssued       = "giftcard.issued.v1"
	EventGiftCardActivated    = "giftcard.activated.v1"
)

// NewEvent marshals payload into an Event.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
