package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/money"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorledger/pkg/outbox/registry"
)

const notificationsConsumerName = "notifications-worker"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer turns ledger decisions and account changes into vendor notifications.
type Consumer struct {
	repo         creator
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds a ledger notification consumer.
func NewConsumer(repo creator, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("ledger subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		decoders:     registry.LedgerDecoders(),
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if !notifies(eventType) {
		c.logg.Debug(logCtx, "skipping event without vendor notification")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	notification, err := notificationFor(eventType, decoded)
	if err != nil {
		c.logg.Error(logCtx, "payload cannot be addressed", err)
		return processResult{ack: true}
	}
	notification.EventID = eventID
	logCtx = c.logg.WithField(logCtx, "vendor_id", notification.VendorID.String())

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationsConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		if db.IsUniqueViolation(err, "") {
			c.logg.Info(logCtx, "notification already stored")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, notificationsConsumerName, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "vendor notified")
	return processResult{ack: true}
}

func notifies(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventSettlementApproved,
		enums.EventSettlementRejected,
		enums.EventWithdrawalApproved,
		enums.EventWithdrawalRejected,
		enums.EventVendorBlocked,
		enums.EventVendorUnblocked,
		enums.EventVendorCashLimitUpdated:
		return true
	default:
		return false
	}
}

func notificationFor(eventType enums.OutboxEventType, decoded any) (*models.Notification, error) {
	var n models.Notification
	switch payload := decoded.(type) {
	case payloads.SettlementEvent:
		n.VendorID = payload.VendorID
		n.Type = enums.NotificationTypeSettlement
		n.SubjectID = subject(payload.SettlementID)
		if eventType == enums.EventSettlementApproved {
			n.Title = "Settlement approved"
			n.Message = fmt.Sprintf("Your settlement of %s was approved. Outstanding due is now %s.",
				formatCents(payload.AppliedCents), formatCents(payload.DueBalanceCents))
		} else {
			n.Title = "Settlement rejected"
			n.Message = fmt.Sprintf("Your settlement of %s was rejected. Reason: %s",
				formatCents(payload.AmountCents), payload.RejectionReason)
		}
	case payloads.WithdrawalEvent:
		n.VendorID = payload.VendorID
		n.Type = enums.NotificationTypeWithdrawal
		n.SubjectID = subject(payload.WithdrawalID)
		if eventType == enums.EventWithdrawalApproved {
			n.Title = "Withdrawal paid"
			n.Message = fmt.Sprintf("Your withdrawal of %s was paid out. Reference: %s",
				formatCents(payload.AmountCents), payload.TransactionReference)
		} else {
			n.Title = "Withdrawal rejected"
			n.Message = fmt.Sprintf("Your withdrawal of %s was rejected. Reason: %s",
				formatCents(payload.AmountCents), payload.RejectionReason)
		}
	case payloads.VendorBlockChangedEvent:
		n.VendorID = payload.VendorID
		n.Type = enums.NotificationTypeAccount
		if payload.Blocked {
			n.Title = "Account blocked"
			n.Message = fmt.Sprintf("Your account was blocked: %s. Outstanding due is %s against a limit of %s.",
				payload.Reason, formatCents(payload.DueBalanceCents), formatCents(payload.CashLimitCents))
		} else {
			n.Title = "Account unblocked"
			n.Message = "Your account was unblocked and can accept cash bookings again."
		}
	case payloads.VendorCashLimitUpdatedEvent:
		n.VendorID = payload.VendorID
		n.Type = enums.NotificationTypeAccount
		n.Title = "Cash limit updated"
		n.Message = fmt.Sprintf("Your cash limit changed from %s to %s.",
			formatCents(payload.PreviousCashLimitCents), formatCents(payload.CashLimitCents))
	default:
		return nil, fmt.Errorf("unsupported payload %T for %s", decoded, eventType)
	}
	if n.VendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id missing")
	}
	return &n, nil
}

func subject(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func formatCents(cents int64) string {
	return money.ToDecimal(cents).StringFixed(2)
}
