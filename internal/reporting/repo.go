package reporting

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Repository runs the read-only aggregate queries behind the admin dashboard.
type Repository interface {
	VendorTotals(ctx context.Context) (VendorTotals, error)
	PendingSettlements(ctx context.Context) (CountAmount, error)
	PendingWithdrawals(ctx context.Context) (CountAmount, error)
	ListVendors(ctx context.Context, filter VendorBalanceFilter, params pagination.Params) ([]models.Vendor, error)
}

// VendorTotals sums the cached vendor aggregates.
type VendorTotals struct {
	VendorCount         int64
	BlockedCount        int64
	TotalDueCents       int64
	TotalWalletCents    int64
	VendorsWithDueCount int64
}

// CountAmount is a row count with the sum of its amounts.
type CountAmount struct {
	Count       int64
	AmountCents int64
}

type repository struct {
	base repo.Base
}

// NewRepository returns a reporting repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) VendorTotals(ctx context.Context) (VendorTotals, error) {
	var totals VendorTotals
	err := r.base.DB(ctx).
		Model(&models.Vendor{}).
		Select(
			"COUNT(*) AS vendor_count, " +
				"COALESCE(SUM(CASE WHEN is_blocked THEN 1 ELSE 0 END), 0) AS blocked_count, " +
				"COALESCE(SUM(due_balance_cents), 0) AS total_due_cents, " +
				"COALESCE(SUM(wallet_earnings_cents), 0) AS total_wallet_cents, " +
				"COALESCE(SUM(CASE WHEN due_balance_cents > 0 THEN 1 ELSE 0 END), 0) AS vendors_with_due_count",
		).
		Scan(&totals).Error
	return totals, err
}

func (r *repository) PendingSettlements(ctx context.Context) (CountAmount, error) {
	var out CountAmount
	err := r.base.DB(ctx).
		Model(&models.Settlement{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS amount_cents").
		Where("status = ?", enums.SettlementPending).
		Scan(&out).Error
	return out, err
}

func (r *repository) PendingWithdrawals(ctx context.Context) (CountAmount, error) {
	var out CountAmount
	err := r.base.DB(ctx).
		Model(&models.WithdrawalRequest{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS amount_cents").
		Where("status = ?", enums.WithdrawalPending).
		Scan(&out).Error
	return out, err
}

// ListVendors pages vendors newest first with the balance filters applied.
func (r *repository) ListVendors(ctx context.Context, filter VendorBalanceFilter, params pagination.Params) ([]models.Vendor, error) {
	query := r.base.DB(ctx).Model(&models.Vendor{})
	if filter.FilterDue {
		query = query.Where("due_balance_cents > 0")
	}
	if filter.Blocked != nil {
		query = query.Where("is_blocked = ?", *filter.Blocked)
	}
	query, err := repo.Paginate(query, "created_at", params)
	if err != nil {
		return nil, err
	}
	var rows []models.Vendor
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
