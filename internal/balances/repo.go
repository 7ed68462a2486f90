package balances

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// HistoryRepository sums a vendor's recorded history so cached balances can be checked.
type HistoryRepository interface {
	WithTx(tx *gorm.DB) HistoryRepository
	Totals(ctx context.Context, vendorID uuid.UUID) (HistoryTotals, error)
}

// HistoryTotals are the raw sums behind a vendor's balances, in minor units.
type HistoryTotals struct {
	CashCollectedCents       int64
	WalletCreditsCents       int64
	WalletDebitsCents        int64
	SettlementsAppliedCents  int64
	WithdrawalsApprovedCents int64
}

// Derive computes the balances implied by the totals.
func (h HistoryTotals) Derive() Derived {
	due := h.CashCollectedCents - h.SettlementsAppliedCents
	if due < 0 {
		due = 0
	}
	wallet := h.WalletCreditsCents - h.WalletDebitsCents - h.WithdrawalsApprovedCents
	if wallet < 0 {
		wallet = 0
	}
	return Derived{DueBalanceCents: due, WalletEarningsCents: wallet}
}

type historyRepository struct {
	base repo.Base
}

// NewHistoryRepository returns a history repository bound to the provided database.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{base: repo.NewBase(db)}
}

func (r *historyRepository) WithTx(tx *gorm.DB) HistoryRepository {
	if tx == nil {
		return r
	}
	return &historyRepository{base: r.base.WithTx(tx)}
}

type cashTotalsRow struct {
	CashCollected int64
	Credits       int64
	Debits        int64
}

func (r *historyRepository) Totals(ctx context.Context, vendorID uuid.UUID) (HistoryTotals, error) {
	var cash cashTotalsRow
	err := r.base.DB(ctx).
		Model(&models.CashEvent{}).
		Select(
			"COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0) AS cash_collected, "+
				"COALESCE(SUM(CASE WHEN type IN (?, ?) THEN amount_cents ELSE 0 END), 0) AS credits, "+
				"COALESCE(SUM(CASE WHEN type IN (?, ?) THEN amount_cents ELSE 0 END), 0) AS debits",
			enums.CashEventCashCollected,
			enums.CashEventCredit, enums.CashEventPayment,
			enums.CashEventDebit, enums.CashEventRefund,
		).
		Where("vendor_id = ?", vendorID).
		Scan(&cash).Error
	if err != nil {
		return HistoryTotals{}, err
	}

	var applied int64
	err = r.base.DB(ctx).
		Model(&models.Settlement{}).
		Select("COALESCE(SUM(applied_cents), 0)").
		Where("vendor_id = ? AND status = ?", vendorID, enums.SettlementApproved).
		Scan(&applied).Error
	if err != nil {
		return HistoryTotals{}, err
	}

	var withdrawn int64
	err = r.base.DB(ctx).
		Model(&models.WithdrawalRequest{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("vendor_id = ? AND status = ?", vendorID, enums.WithdrawalApproved).
		Scan(&withdrawn).Error
	if err != nil {
		return HistoryTotals{}, err
	}

	return HistoryTotals{
		CashCollectedCents:       cash.CashCollected,
		WalletCreditsCents:       cash.Credits,
		WalletDebitsCents:        cash.Debits,
		SettlementsAppliedCents:  applied,
		WithdrawalsApprovedCents: withdrawn,
	}, nil
}
