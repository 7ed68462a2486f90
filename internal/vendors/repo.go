package vendors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

// Repository persists the per-vendor balance aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, vendor *models.Vendor) error
	Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	Save(ctx context.Context, vendor *models.Vendor) error
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a vendors repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, vendor *models.Vendor) error {
	if vendor.ID == uuid.Nil {
		vendor.ID = uuid.New()
	}
	return r.base.DB(ctx).Create(vendor).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.base.DB(ctx).Where("id = ?", id).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.base.ForUpdate(ctx).Where("id = ?", id).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// Save writes the mutable aggregate columns guarded by the version read with
// the row. A stale version yields a ConcurrencyConflict error and no write.
func (r *repository) Save(ctx context.Context, vendor *models.Vendor) error {
	now := time.Now().UTC()
	res := r.base.DB(ctx).
		Model(&models.Vendor{}).
		Where("id = ? AND version = ?", vendor.ID, vendor.Version).
		Updates(map[string]any{
			"cash_limit_cents":      vendor.CashLimitCents,
			"due_balance_cents":     vendor.DueBalanceCents,
			"wallet_earnings_cents": vendor.WalletEarningsCents,
			"is_blocked":            vendor.IsBlocked,
			"block_reason":          vendor.BlockReason,
			"blocked_at":            vendor.BlockedAt,
			"last_evaluated_at":     vendor.LastEvaluatedAt,
			"version":               gorm.Expr("version + 1"),
			"updated_at":            now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrency, "vendor balance changed concurrently").
			WithDetails(map[string]any{"vendor_id": vendor.ID.String(), "version": vendor.Version})
	}
	vendor.Version++
	vendor.UpdatedAt = now
	return nil
}

// ListIDs pages through vendor ids in id order for batch jobs.
func (r *repository) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.base.DB(ctx).Model(&models.Vendor{}).Order("id ASC").Limit(limit)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
