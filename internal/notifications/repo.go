package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Filter narrows a vendor inbox. The zero value matches everything.
type Filter struct {
	UnreadOnly bool
	Type       enums.NotificationType
}

// Repository persists vendor notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, vendorID uuid.UUID, filter Filter, page pagination.Params) ([]models.Notification, error)
	CountUnread(ctx context.Context, vendorID uuid.UUID) (int64, error)
	// MarkRead reports false when the vendor owns no such notification.
	MarkRead(ctx context.Context, vendorID, notificationID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, vendorID uuid.UUID, at time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type gormRepository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{base: r.base.WithTx(tx)}
}

func (r *gormRepository) inbox(ctx context.Context, vendorID uuid.UUID) *gorm.DB {
	return r.base.DB(ctx).Model(&models.Notification{}).Where("vendor_id = ?", vendorID)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return r.base.DB(ctx).Create(notification).Error
}

func (r *gormRepository) List(ctx context.Context, vendorID uuid.UUID, filter Filter, page pagination.Params) ([]models.Notification, error) {
	query := r.inbox(ctx, vendorID)
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	query, err := repo.Paginate(query, "created_at", page)
	if err != nil {
		return nil, err
	}

	var rows []models.Notification
	return rows, query.Find(&rows).Error
}

func (r *gormRepository) CountUnread(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	var n int64
	err := r.inbox(ctx, vendorID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead keeps the first read_at, so repeating the call matches the row
// without moving its timestamp.
func (r *gormRepository) MarkRead(ctx context.Context, vendorID, notificationID uuid.UUID, at time.Time) (bool, error) {
	res := r.inbox(ctx, vendorID).
		Where("id = ?", notificationID).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", at.UTC()))
	return res.RowsAffected > 0, res.Error
}

func (r *gormRepository) MarkAllRead(ctx context.Context, vendorID uuid.UUID, at time.Time) (int64, error) {
	res := r.inbox(ctx, vendorID).Where("read_at IS NULL").UpdateColumn("read_at", at.UTC())
	return res.RowsAffected, res.Error
}

// DeleteReadBefore prunes notifications read before cutoff across all vendors.
func (r *gormRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.base.DB(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff.UTC()).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
