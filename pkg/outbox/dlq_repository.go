package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// DeadLetters is the operator view of parked events.
type DeadLetters interface {
	List(ctx context.Context, params pagination.Params) (pagination.Page[models.OutboxDLQ], error)
	Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error)
}

type DLQRepository struct {
	db *gorm.DB
}

var _ DeadLetters = (*DLQRepository)(nil)

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes entry inside the caller's transaction.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ErrorMessage != nil {
		msg := models.TruncateOutboxError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil when the event was never parked.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List pages through parked events, most recent failure first.
func (r *DLQRepository) List(ctx context.Context, params pagination.Params) (pagination.Page[models.OutboxDLQ], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.OutboxDLQ]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if cursor != nil {
		query = query.Where("(failed_at, id) < (?, ?)", cursor.CreatedAt.UTC(), cursor.ID)
	}
	var rows []models.OutboxDLQ
	err = query.
		Order("failed_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return pagination.Page[models.OutboxDLQ]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	return pagination.BuildPage(rows, params.Limit, func(entry models.OutboxDLQ) pagination.Cursor {
		return pagination.Cursor{CreatedAt: entry.FailedAt, ID: entry.ID}
	}), nil
}

// Replay hands a parked event back to the publisher with a fresh attempt
// budget and removes it from the DLQ. A source row pruned since parking is
// restored from the DLQ copy.
func (r *DLQRepository) Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error) {
	var replayed models.OutboxEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.OutboxDLQ
		if err := tx.Where("event_id = ?", eventID).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "dead letter not found")
			}
			return err
		}

		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{
				"attempt_count": 0,
				"last_error":    nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			restored := models.OutboxEvent{
				ID:            entry.EventID,
				EventType:     entry.EventType,
				AggregateType: entry.AggregateType,
				AggregateID:   entry.AggregateID,
				Payload:       entry.Payload,
			}
			if err := tx.Create(&restored).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{}).Error; err != nil {
			return err
		}
		return tx.First(&replayed, "id = ?", eventID).Error
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replay dead letter")
	}
	return &replayed, nil
}

// DeleteFailedBefore prunes dead letters parked before cutoff.
func (r *DLQRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("failed_at < ?", cutoff.UTC()).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
