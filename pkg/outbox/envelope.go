package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

// EnvelopeVersion is stamped on events that do not pick their own.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	ActorID  uuid.UUID       `json:"actorId"`
	VendorID *uuid.UUID      `json:"vendorId,omitempty"`
	Role     enums.ActorRole `json:"role,omitempty"`
}

// PayloadEnvelope is what lands in outbox_events.payload and on the wire.
// EventID equals the outbox row id so consumers can dedupe on it.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, err
	}
	return env, nil
}

// DomainEvent is a fact a service wants published once its transaction commits.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown outbox aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "outbox aggregate id required")
	}
	return nil
}

// seal wraps Data in an envelope keyed by id and returns the row to insert.
func (e DomainEvent) seal(id uuid.UUID, now time.Time) (models.OutboxEvent, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return models.OutboxEvent{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode outbox data")
	}
	env := PayloadEnvelope{
		Version:    e.Version,
		EventID:    id.String(),
		OccurredAt: e.OccurredAt.UTC(),
		Actor:      e.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	if e.OccurredAt.IsZero() {
		env.OccurredAt = now.UTC()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return models.OutboxEvent{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode outbox envelope")
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
	}, nil
}
