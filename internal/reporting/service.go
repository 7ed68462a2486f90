// Package reporting serves read-only ledger aggregates for the admin UI.
// Nothing here feeds a write path; decisions always re-read the vendor row under lock.
package reporting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/money"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// Service exposes dashboard totals and the per-vendor balance table.
type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	VendorBalances(ctx context.Context, filter VendorBalanceFilter, params pagination.Params) (pagination.Page[VendorBalance], error)
}

// VendorBalanceFilter narrows the vendor balance table.
type VendorBalanceFilter struct {
	FilterDue bool
	Blocked   *bool
}

// Dashboard is the aggregate card set on the admin settlements page.
type Dashboard struct {
	VendorCount            int64 `json:"vendor_count"`
	BlockedVendorCount     int64 `json:"blocked_vendor_count"`
	VendorsWithDueCount    int64 `json:"vendors_with_due_count"`
	TotalDueCents          int64 `json:"total_due_cents"`
	TotalWalletCents       int64 `json:"total_wallet_cents"`
	PendingSettlementCount int64 `json:"pending_settlement_count"`
	PendingSettlementCents int64 `json:"pending_settlement_cents"`
	PendingWithdrawalCount int64 `json:"pending_withdrawal_count"`
	PendingWithdrawalCents int64 `json:"pending_withdrawal_cents"`
}

// VendorBalance is one row of the vendor balance table.
type VendorBalance struct {
	VendorID            uuid.UUID       `json:"vendor_id"`
	Name                string          `json:"name"`
	DueBalanceCents     int64           `json:"due_balance_cents"`
	WalletEarningsCents int64           `json:"wallet_earnings_cents"`
	CashLimitCents      int64           `json:"cash_limit_cents"`
	IsBlocked           bool            `json:"is_blocked"`
	BlockReason         *string         `json:"block_reason,omitempty"`
	LimitRatio          decimal.Decimal `json:"limit_ratio"`
	vendorCursor        pagination.Cursor
}

type service struct {
	repo Repository
}

// NewService wires the reporting projection.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reporting repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	totals, err := s.repo.VendorTotals(ctx)
	if err != nil {
		return nil, repo.Classify(err, "", "sum vendor balances")
	}
	settlements, err := s.repo.PendingSettlements(ctx)
	if err != nil {
		return nil, repo.Classify(err, "", "sum pending settlements")
	}
	withdrawals, err := s.repo.PendingWithdrawals(ctx)
	if err != nil {
		return nil, repo.Classify(err, "", "sum pending withdrawals")
	}
	return &Dashboard{
		VendorCount:            totals.VendorCount,
		BlockedVendorCount:     totals.BlockedCount,
		VendorsWithDueCount:    totals.VendorsWithDueCount,
		TotalDueCents:          totals.TotalDueCents,
		TotalWalletCents:       totals.TotalWalletCents,
		PendingSettlementCount: settlements.Count,
		PendingSettlementCents: settlements.AmountCents,
		PendingWithdrawalCount: withdrawals.Count,
		PendingWithdrawalCents: withdrawals.AmountCents,
	}, nil
}

func (s *service) VendorBalances(ctx context.Context, filter VendorBalanceFilter, params pagination.Params) (pagination.Page[VendorBalance], error) {
	rows, err := s.repo.ListVendors(ctx, filter, params)
	if err != nil {
		return pagination.Page[VendorBalance]{}, repo.Classify(err, "", "list vendor balances")
	}
	balances := make([]VendorBalance, 0, len(rows))
	for i := range rows {
		balances = append(balances, toVendorBalance(&rows[i]))
	}
	return pagination.BuildPage(balances, params.Limit, func(b VendorBalance) pagination.Cursor {
		return b.vendorCursor
	}), nil
}

func toVendorBalance(v *models.Vendor) VendorBalance {
	return VendorBalance{
		VendorID:            v.ID,
		Name:                v.Name,
		DueBalanceCents:     v.DueBalanceCents,
		WalletEarningsCents: v.WalletEarningsCents,
		CashLimitCents:      v.CashLimitCents,
		IsBlocked:           v.IsBlocked,
		BlockReason:         v.BlockReason,
		LimitRatio:          money.Ratio(v.DueBalanceCents, v.CashLimitCents),
		vendorCursor:        pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID},
	}
}
