package withdrawals

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

// Repository persists withdrawal requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.WithdrawalRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Decide(ctx context.Context, request *models.WithdrawalRequest) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.WithdrawalRequest, error)
}

// ListFilter narrows withdrawal listings. Zero values match everything.
type ListFilter struct {
	VendorID *uuid.UUID
	Status   *enums.WithdrawalStatus
}

type repository struct {
	base repo.Base
}

// NewRepository returns a withdrawals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	return r.base.DB(ctx).Create(request).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := r.base.DB(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := r.base.ForUpdate(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// Decide writes the decision columns while the row is still pending.
func (r *repository) Decide(ctx context.Context, request *models.WithdrawalRequest) error {
	now := time.Now().UTC()
	res := r.base.DB(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", request.ID, enums.WithdrawalPending).
		Updates(map[string]any{
			"status":                request.Status,
			"transaction_reference": request.TransactionReference,
			"admin_notes":           request.AdminNotes,
			"rejection_reason":      request.RejectionReason,
			"decided_by":            request.DecidedBy,
			"decided_at":            request.DecidedAt,
			"updated_at":            now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal already decided").
			WithDetails(map[string]any{"withdrawal_id": request.ID.String()})
	}
	request.UpdatedAt = now
	return nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.WithdrawalRequest, error) {
	query := r.base.DB(ctx).Model(&models.WithdrawalRequest{})
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query, err := repo.Paginate(query, "requested_at", params)
	if err != nil {
		return nil, err
	}
	var rows []models.WithdrawalRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
