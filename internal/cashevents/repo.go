package cashevents

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Repository manages persistence for the append-only cash event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.CashEvent) error
	FindByBooking(ctx context.Context, bookingID uuid.UUID, eventType enums.CashEventType) (*models.CashEvent, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.CashEvent, error)
}

// ListFilter narrows a vendor's cash event listing.
type ListFilter struct {
	Type *enums.CashEventType
}

type repository struct {
	base repo.Base
}

// NewRepository returns a cash event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, event *models.CashEvent) error {
	return r.base.DB(ctx).Create(event).Error
}

func (r *repository) FindByBooking(ctx context.Context, bookingID uuid.UUID, eventType enums.CashEventType) (*models.CashEvent, error) {
	var event models.CashEvent
	if err := r.base.DB(ctx).
		Where("booking_id = ? AND type = ?", bookingID, eventType).
		First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByVendor returns up to params.Limit+1 events, newest first.
func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, filter ListFilter, params pagination.Params) ([]models.CashEvent, error) {
	query := r.base.DB(ctx).Where("vendor_id = ?", vendorID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	query, err := repo.Paginate(query, "created_at", params)
	if err != nil {
		return nil, err
	}
	var events []models.CashEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
