package settlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Repository persists settlement claims.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.Settlement) error
	Get(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	Decide(ctx context.Context, settlement *models.Settlement) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Settlement, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Settlement, error)
}

// ListFilter narrows settlement listings. Zero values match everything.
type ListFilter struct {
	VendorID *uuid.UUID
	Status   *enums.SettlementStatus
}

type repository struct {
	base repo.Base
}

// NewRepository returns a settlements repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, settlement *models.Settlement) error {
	return r.base.DB(ctx).Create(settlement).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := r.base.DB(ctx).Where("id = ?", id).First(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := r.base.ForUpdate(ctx).Where("id = ?", id).First(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

// Decide writes the decision columns. The row must still be pending; otherwise
// the write is skipped and a state conflict is returned.
func (r *repository) Decide(ctx context.Context, settlement *models.Settlement) error {
	now := time.Now().UTC()
	res := r.base.DB(ctx).
		Model(&models.Settlement{}).
		Where("id = ? AND status = ?", settlement.ID, enums.SettlementPending).
		Updates(map[string]any{
			"status":           settlement.Status,
			"applied_cents":    settlement.AppliedCents,
			"rejection_reason": settlement.RejectionReason,
			"decided_by":       settlement.DecidedBy,
			"decided_at":       settlement.DecidedAt,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "settlement already decided").
			WithDetails(map[string]any{"settlement_id": settlement.ID.String()})
	}
	settlement.UpdatedAt = now
	return nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Settlement, error) {
	query := r.base.DB(ctx).Model(&models.Settlement{})
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query, err := repo.Paginate(query, "created_at", params)
	if err != nil {
		return nil, err
	}
	var rows []models.Settlement
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingBefore returns the oldest pending settlements submitted before cutoff.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Settlement, error) {
	var rows []models.Settlement
	err := r.base.DB(ctx).
		Where("status = ? AND created_at < ?", enums.SettlementPending, cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
