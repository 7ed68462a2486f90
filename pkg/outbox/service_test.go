package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

func openOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return conn
}

func TestEmitStoresEnvelopeWithRowID(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)
	vendorID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventVendorBlocked,
			AggregateType: enums.AggregateVendor,
			AggregateID:   vendorID,
			Actor:         &ActorRef{ActorID: uuid.New(), Role: enums.ActorRoleAdmin},
			Data:          payloads.VendorBlockChangedEvent{VendorID: vendorID, Blocked: true, Reason: "manual"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, rows[0].ID.String(), env.EventID)
	require.Equal(t, EnvelopeVersion, env.Version)
	require.False(t, env.OccurredAt.IsZero())
	require.Equal(t, enums.ActorRoleAdmin, env.Actor.Role)
	require.Contains(t, string(env.Data), `"blocked":true`)
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventType("bogus"),
			AggregateType: enums.AggregateVendor,
			AggregateID:   uuid.New(),
		})
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
}

func TestSealKeepsCallerVersionAndTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))
	id := uuid.New()
	row, err := DomainEvent{
		EventType:     enums.EventVendorBlocked,
		AggregateType: enums.AggregateVendor,
		AggregateID:   uuid.New(),
		Version:       2,
		OccurredAt:    at,
	}.seal(id, time.Now())
	require.NoError(t, err)
	require.Equal(t, id, row.ID)

	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	require.Equal(t, 2, env.Version)
	require.True(t, env.OccurredAt.Equal(at))
	require.Equal(t, "null", string(env.Data))
}

func TestEmitRejectsMissingAggregate(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventVendorBlocked,
		AggregateType: enums.AggregateVendor,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestEmitIfNotExistsQueuesOnce(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)
	settlementID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventSettlementStale,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   settlementID,
		Data:          payloads.SettlementStaleEvent{SettlementID: settlementID},
	}

	var first, second bool
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = svc.EmitIfNotExists(context.Background(), tx, event)
		return err
	}))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = svc.EmitIfNotExists(context.Background(), tx, event)
		return err
	}))

	require.True(t, first)
	require.False(t, second)
	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestDeletePublishedBefore(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	old := time.Now().UTC().Add(-48 * time.Hour)

	published := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventVendorUnblocked, AggregateType: enums.AggregateVendor, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old}
	pending := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventVendorUnblocked, AggregateType: enums.AggregateVendor, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, conn.Create(&published).Error)
	require.NoError(t, conn.Create(&pending).Error)

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	rows, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, pending.ID, rows[0].ID)
}

func TestFetchUnpublishedForPublishSkipsTerminalRows(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)

	live := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventSettlementSubmitted, AggregateType: enums.AggregateSettlement, AggregateID: uuid.New(), Payload: []byte(`{}`), AttemptCount: 1}
	parked := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventSettlementSubmitted, AggregateType: enums.AggregateSettlement, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, conn.Create(&live).Error)
	require.NoError(t, conn.Create(&parked).Error)
	require.NoError(t, repo.MarkTerminalTx(conn, parked.ID, errors.New("bad payload"), 3))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, live.ID, rows[0].ID)

	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored, "id = ?", parked.ID).Error)
	require.Equal(t, 3, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	require.Equal(t, "bad payload", *stored.LastError)
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewDLQRepository(conn)
	eventID := uuid.New()
	long := make([]byte, models.MaxOutboxErrorLen+50)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)

	require.NoError(t, repo.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventSettlementApproved,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))

	row, err := repo.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Len(t, *row.ErrorMessage, models.MaxOutboxErrorLen)
}

func TestDeadLetterTruncatesOnRuneBoundary(t *testing.T) {
	event := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventCashEventRecorded, AggregateType: enums.AggregateVendor, AggregateID: uuid.New(), Payload: []byte(`{}`), AttemptCount: 4}
	cause := errors.New("x" + strings.Repeat("é", models.MaxOutboxErrorLen))

	entry := event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, cause, time.Now())
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, 4, entry.AttemptCount)
	require.NotNil(t, entry.ErrorMessage)
	require.LessOrEqual(t, len(*entry.ErrorMessage), models.MaxOutboxErrorLen)
	require.True(t, utf8.ValidString(*entry.ErrorMessage))
}

func TestDLQReplayResetsParkedRow(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)

	event := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventSettlementApproved, AggregateType: enums.AggregateSettlement, AggregateID: uuid.New(), Payload: []byte(`{}`)}
	require.NoError(t, conn.Create(&event).Error)
	cause := errors.New("topic missing")
	require.NoError(t, dlq.InsertTx(conn, event.DeadLetter(enums.OutboxDLQReasonNonRetryable, cause, time.Now())))
	require.NoError(t, repo.MarkTerminalTx(conn, event.ID, cause, 10))

	replayed, err := dlq.Replay(context.Background(), event.ID)
	require.NoError(t, err)
	require.Equal(t, 0, replayed.AttemptCount)
	require.Nil(t, replayed.LastError)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	parked, err := dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	require.Nil(t, parked)
}

func TestDLQReplayRestoresPrunedRow(t *testing.T) {
	conn := openOutboxDB(t)
	dlq := NewDLQRepository(conn)

	event := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventWithdrawalApproved, AggregateType: enums.AggregateWithdrawal, AggregateID: uuid.New(), Payload: []byte(`{"v":1}`)}
	require.NoError(t, dlq.InsertTx(conn, event.DeadLetter(enums.OutboxDLQReasonUndecodable, errors.New("bad"), time.Now())))

	replayed, err := dlq.Replay(context.Background(), event.ID)
	require.NoError(t, err)
	require.Equal(t, event.AggregateID, replayed.AggregateID)
	require.JSONEq(t, `{"v":1}`, string(replayed.Payload))
}

func TestDLQReplayUnknownEvent(t *testing.T) {
	dlq := NewDLQRepository(openOutboxDB(t))

	_, err := dlq.Replay(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDLQListNewestFirst(t *testing.T) {
	conn := openOutboxDB(t)
	dlq := NewDLQRepository(conn)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		event := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventCashEventRecorded, AggregateType: enums.AggregateVendor, AggregateID: uuid.New(), Payload: []byte(`{}`)}
		require.NoError(t, dlq.InsertTx(conn, event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, errors.New("timeout"), base.Add(time.Duration(i)*time.Minute))))
	}

	page, err := dlq.List(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	require.True(t, page.Items[0].FailedAt.After(page.Items[1].FailedAt))

	_, err = dlq.List(context.Background(), pagination.Params{Cursor: "%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
