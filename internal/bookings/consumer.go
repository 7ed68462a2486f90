// Package bookings consumes booking-completed messages from the booking
// collaborator and records the matching cash events.
package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/internal/cashevents"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

const bookingsConsumerName = "bookings-worker"

const (
	PaymentModeCash   = "cash"
	PaymentModeOnline = "online"
)

// CompletedMessage is the booking-completed message body.
type CompletedMessage struct {
	EventID             uuid.UUID `json:"event_id"`
	BookingID           uuid.UUID `json:"booking_id"`
	VendorID            uuid.UUID `json:"vendor_id"`
	AmountCents         int64     `json:"amount_cents"`
	VendorEarningsCents int64     `json:"vendor_earnings_cents,omitempty"`
	PaymentMode         string    `json:"payment_mode"`
	CompletedAt         time.Time `json:"completed_at"`
}

type recorder interface {
	Record(ctx context.Context, input cashevents.RecordInput) (*cashevents.RecordResult, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
	ProcessedAt(ctx context.Context, consumer string, eventID uuid.UUID) (time.Time, bool, error)
}

// Consumer records cash events for completed bookings.
type Consumer struct {
	recorder     recorder
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds a booking-completed consumer.
func NewConsumer(rec recorder, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if rec == nil {
		return nil, fmt.Errorf("cash event recorder required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("bookings subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		recorder:     rec,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var body CompletedMessage
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		c.logg.Error(logCtx, "failed to decode booking message", err)
		return processResult{}
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":     body.EventID.String(),
		"booking_id":   body.BookingID.String(),
		"vendor_id":    body.VendorID.String(),
		"payment_mode": body.PaymentMode,
	})

	input, ok, err := recordInputFor(body)
	if err != nil {
		c.logg.Error(logCtx, "invalid booking message", err)
		return processResult{}
	}
	if !ok {
		c.logg.Debug(logCtx, "booking carries no ledger movement")
		return processResult{}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, bookingsConsumerName, body.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		if at, ok, err := c.idempotency.ProcessedAt(ctx, bookingsConsumerName, body.EventID); err == nil && ok {
			logCtx = c.logg.WithField(logCtx, "first_processed_at", at)
		}
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	result, err := c.recorder.Record(ctx, input)
	if err != nil {
		if pkgerrors.Retryable(err) {
			c.logg.Error(logCtx, "recording cash event failed, will retry", err)
			_ = c.idempotency.Delete(ctx, bookingsConsumerName, body.EventID)
			return processResult{nack: true}
		}
		c.logg.Error(logCtx, "booking rejected by ledger", err)
		return processResult{}
	}

	logCtx = c.logg.WithField(logCtx, "cash_event_id", result.Event.ID.String())
	if result.Duplicate {
		c.logg.Info(logCtx, "booking already recorded")
		return processResult{}
	}
	c.logg.Info(logCtx, "booking recorded")
	return processResult{}
}

// recordInputFor maps a booking onto a cash event. Cash bookings add to the
// amount due; online bookings credit the vendor's share to the wallet.
func recordInputFor(body CompletedMessage) (cashevents.RecordInput, bool, error) {
	if body.EventID == uuid.Nil {
		return cashevents.RecordInput{}, false, errors.New("event_id missing")
	}
	if body.BookingID == uuid.Nil {
		return cashevents.RecordInput{}, false, errors.New("booking_id missing")
	}
	if body.VendorID == uuid.Nil {
		return cashevents.RecordInput{}, false, errors.New("vendor_id missing")
	}

	bookingID := body.BookingID
	input := cashevents.RecordInput{
		VendorID:  body.VendorID,
		BookingID: &bookingID,
		Actor:     outbox.ActorRef{Role: enums.ActorRoleSystem},
	}
	switch strings.ToLower(strings.TrimSpace(body.PaymentMode)) {
	case PaymentModeCash:
		input.Type = enums.CashEventCashCollected
		input.AmountCents = body.AmountCents
	case PaymentModeOnline:
		if body.VendorEarningsCents <= 0 {
			return cashevents.RecordInput{}, false, nil
		}
		input.Type = enums.CashEventCredit
		input.AmountCents = body.VendorEarningsCents
	default:
		return cashevents.RecordInput{}, false, fmt.Errorf("unsupported payment_mode %q", body.PaymentMode)
	}
	return input, true, nil
}
