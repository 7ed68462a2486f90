package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertLedgerEvent(ctx context.Context, row types.LedgerEventRow) error
}

// Handler receives an envelope plus its decoded payload, which is a payload
// struct value such as payloads.SettlementEvent.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router decodes analytics envelopes with the shared ledger catalog and
// hands them to the handler for their event type. Every catalogued event
// becomes one ledger_events row unless an override replaces its handler.
type Router struct {
	decoders *registry.DecoderRegistry
	handlers map[enums.OutboxEventType]Handler
}

func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	rows := &rowHandler{writer: writer, logg: logg}
	handlers := make(map[enums.OutboxEventType]Handler)
	for _, eventType := range registry.EventTypes() {
		handlers[eventType] = rows
	}
	for eventType, custom := range overrides {
		if _, known := handlers[eventType]; known && custom != nil {
			handlers[eventType] = custom
		}
	}
	return &Router{decoders: registry.LedgerDecoders(), handlers: handlers}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%w: empty payload for %s", types.ErrMalformed, envelope.EventType)
	}
	payload, err := r.decoders.Decode(envelope.EventType, 0, envelope.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrMalformed, err)
	}
	return handler.Handle(ctx, envelope, payload)
}

// rowHandler is the default handler: one ledger_events row per envelope.
type rowHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *rowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	row, err := ledgerRow(envelope, payload)
	if err != nil {
		return err
	}
	if envelope.EventType == enums.EventVendorBalanceRepaired {
		h.logg.Warn(h.logg.WithField(ctx, "vendor_id", row.VendorID), "balance repair recorded")
	}
	return h.writer.InsertLedgerEvent(ctx, row)
}
