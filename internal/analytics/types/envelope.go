package types

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

// Envelope is one ledger event as seen by the analytics pipeline: routing
// fields come from message attributes, the body from the stored outbox
// envelope.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	ActorRole     string                    `json:"actor_role,omitempty"`
	Payload       json.RawMessage           `json:"payload"`
}

// ErrMalformed marks messages that can never be decoded; consumers ack and
// drop them.
var ErrMalformed = errors.New("malformed ledger message")

// DecodeMessage builds an Envelope from a Pub/Sub body and its attributes.
func DecodeMessage(data []byte, attrs map[string]string) (Envelope, error) {
	stored, err := outbox.DecodeEnvelope(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: body: %v", ErrMalformed, err)
	}
	attr := func(key string) string { return strings.TrimSpace(attrs[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: event_type: %v", ErrMalformed, err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: aggregate_type: %v", ErrMalformed, err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return Envelope{}, fmt.Errorf("%w: aggregate_id missing", ErrMalformed)
	}

	eventID := cmp.Or(strings.TrimSpace(stored.EventID), attr("event_id"))
	if eventID == "" {
		return Envelope{}, fmt.Errorf("%w: event_id missing", ErrMalformed)
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			occurredAt = parsed
		}
	}

	env := Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}
	if stored.Actor != nil {
		env.ActorRole = string(stored.Actor.Role)
	}
	return env, nil
}

// DedupeID is the event id as a UUID, used for idempotency keys.
func (e Envelope) DedupeID() (uuid.UUID, error) {
	id, err := uuid.Parse(e.EventID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: event_id %q is not a uuid", ErrMalformed, e.EventID)
	}
	return id, nil
}
