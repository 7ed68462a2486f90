package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorledger/pkg/outbox/registry"
)

type fakeIdempotency struct {
	seen    map[uuid.UUID]bool
	deleted []uuid.UUID
	err     error
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: map[uuid.UUID]bool{}}
}

func (f *fakeIdempotency) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	delete(f.seen, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

func newTestConsumer(repo creator, manager idempotencyChecker) *Consumer {
	return &Consumer{
		repo:        repo,
		idempotency: manager,
		decoders:    registry.LedgerDecoders(),
		logg:        logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard}),
	}
}

func ledgerMessage(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         "msg-1",
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestConsumerNotifiesSettlementApproval(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, newFakeIdempotency())
	vendorID := uuid.New()
	eventID := uuid.New()
	settlementID := uuid.New()

	msg := ledgerMessage(t, enums.EventSettlementApproved, eventID, payloads.SettlementEvent{
		SettlementID:    settlementID,
		VendorID:        vendorID,
		AmountCents:     30000,
		AppliedCents:    30000,
		Status:          enums.SettlementApproved,
		DueBalanceCents: 90000,
	})
	result := consumer.process(context.Background(), msg)
	if result.nack {
		t.Fatalf("expected ack")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.created))
	}
	got := repo.created[0]
	if got.VendorID != vendorID || got.EventID != eventID {
		t.Fatalf("unexpected addressing %+v", got)
	}
	if got.Type != enums.NotificationTypeSettlement || got.Title != "Settlement approved" {
		t.Fatalf("unexpected notification %+v", got)
	}
	if got.SubjectID == nil || *got.SubjectID != settlementID {
		t.Fatalf("expected subject %s, got %v", settlementID, got.SubjectID)
	}
	if !strings.Contains(got.Message, "300.00") || !strings.Contains(got.Message, "900.00") {
		t.Fatalf("expected amounts in message, got %q", got.Message)
	}
}

func TestConsumerMapsEventTypes(t *testing.T) {
	vendorID := uuid.New()
	cases := []struct {
		eventType enums.OutboxEventType
		payload   any
		kind      enums.NotificationType
		title     string
	}{
		{enums.EventSettlementRejected, payloads.SettlementEvent{VendorID: vendorID, AmountCents: 100, RejectionReason: "proof unreadable"}, enums.NotificationTypeSettlement, "Settlement rejected"},
		{enums.EventWithdrawalApproved, payloads.WithdrawalEvent{VendorID: vendorID, AmountCents: 40000, TransactionReference: "UTR123"}, enums.NotificationTypeWithdrawal, "Withdrawal paid"},
		{enums.EventWithdrawalRejected, payloads.WithdrawalEvent{VendorID: vendorID, AmountCents: 40000, RejectionReason: "bank mismatch"}, enums.NotificationTypeWithdrawal, "Withdrawal rejected"},
		{enums.EventVendorBlocked, payloads.VendorBlockChangedEvent{VendorID: vendorID, Blocked: true, Reason: "cash limit exceeded"}, enums.NotificationTypeAccount, "Account blocked"},
		{enums.EventVendorUnblocked, payloads.VendorBlockChangedEvent{VendorID: vendorID}, enums.NotificationTypeAccount, "Account unblocked"},
		{enums.EventVendorCashLimitUpdated, payloads.VendorCashLimitUpdatedEvent{VendorID: vendorID, PreviousCashLimitCents: 100, CashLimitCents: 200}, enums.NotificationTypeAccount, "Cash limit updated"},
	}
	for _, tc := range cases {
		t.Run(string(tc.eventType), func(t *testing.T) {
			repo := &fakeRepository{}
			consumer := newTestConsumer(repo, newFakeIdempotency())
			result := consumer.process(context.Background(), ledgerMessage(t, tc.eventType, uuid.New(), tc.payload))
			if result.nack {
				t.Fatalf("expected ack")
			}
			if len(repo.created) != 1 {
				t.Fatalf("expected one notification, got %d", len(repo.created))
			}
			if repo.created[0].Type != tc.kind || repo.created[0].Title != tc.title {
				t.Fatalf("unexpected notification %+v", repo.created[0])
			}
			// zero ids in the fixtures and account notices both leave the subject unset
			if repo.created[0].SubjectID != nil {
				t.Fatalf("expected no subject, got %v", *repo.created[0].SubjectID)
			}
		})
	}
}

func TestConsumerSkipsEventsWithoutNotification(t *testing.T) {
	repo := &fakeRepository{}
	manager := newFakeIdempotency()
	consumer := newTestConsumer(repo, manager)

	msg := ledgerMessage(t, enums.EventCashEventRecorded, uuid.New(), payloads.CashEventRecordedEvent{VendorID: uuid.New()})
	if result := consumer.process(context.Background(), msg); result.nack {
		t.Fatalf("expected ack for skipped event")
	}
	if len(repo.created) != 0 || len(manager.seen) != 0 {
		t.Fatalf("expected no side effects for skipped event")
	}
}

func TestConsumerDeduplicatesRedelivery(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, newFakeIdempotency())
	msg := ledgerMessage(t, enums.EventVendorBlocked, uuid.New(), payloads.VendorBlockChangedEvent{VendorID: uuid.New(), Blocked: true})

	consumer.process(context.Background(), msg)
	consumer.process(context.Background(), msg)
	if len(repo.created) != 1 {
		t.Fatalf("expected a single notification, got %d", len(repo.created))
	}
}

func TestConsumerNacksAndReleasesOnStoreFailure(t *testing.T) {
	repo := &fakeRepository{createFn: func(ctx context.Context, n *models.Notification) error { return errors.New("db down") }}
	manager := newFakeIdempotency()
	consumer := newTestConsumer(repo, manager)
	eventID := uuid.New()

	msg := ledgerMessage(t, enums.EventWithdrawalApproved, eventID, payloads.WithdrawalEvent{VendorID: uuid.New(), AmountCents: 10})
	if result := consumer.process(context.Background(), msg); !result.nack {
		t.Fatalf("expected nack on store failure")
	}
	if len(manager.deleted) != 1 || manager.deleted[0] != eventID {
		t.Fatalf("expected idempotency key released, got %v", manager.deleted)
	}
}

func TestConsumerAcksDuplicateRow(t *testing.T) {
	repo := &fakeRepository{createFn: func(ctx context.Context, n *models.Notification) error {
		return errors.New("UNIQUE constraint failed: notifications.event_id, notifications.vendor_id")
	}}
	consumer := newTestConsumer(repo, newFakeIdempotency())

	msg := ledgerMessage(t, enums.EventVendorUnblocked, uuid.New(), payloads.VendorBlockChangedEvent{VendorID: uuid.New()})
	if result := consumer.process(context.Background(), msg); result.nack {
		t.Fatalf("expected ack when the notification already exists")
	}
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	manager := newFakeIdempotency()
	manager.err = errors.New("redis down")
	consumer := newTestConsumer(&fakeRepository{}, manager)

	msg := ledgerMessage(t, enums.EventSettlementRejected, uuid.New(), payloads.SettlementEvent{VendorID: uuid.New()})
	if result := consumer.process(context.Background(), msg); !result.nack {
		t.Fatalf("expected nack when idempotency check fails")
	}
}

func TestConsumerAcksMalformedMessages(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, newFakeIdempotency())

	bad := &pubsub.Message{Data: []byte("not json"), Attributes: map[string]string{"event_type": string(enums.EventVendorBlocked)}}
	if result := consumer.process(context.Background(), bad); result.nack {
		t.Fatalf("expected ack for undecodable envelope")
	}

	missingVendor := ledgerMessage(t, enums.EventVendorBlocked, uuid.New(), payloads.VendorBlockChangedEvent{Blocked: true})
	if result := consumer.process(context.Background(), missingVendor); result.nack {
		t.Fatalf("expected ack for payload without vendor")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected nothing stored")
	}
}
