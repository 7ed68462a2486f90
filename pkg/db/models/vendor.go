package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is the per-vendor balance aggregate: cash limit, cached balances and block state.
// Every balance write bumps Version so concurrent writers can detect lost updates.
type Vendor struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name                string     `gorm:"column:name;not null"`
	CashLimitCents      int64      `gorm:"column:cash_limit_cents;not null;default:0"`
	DueBalanceCents     int64      `gorm:"column:due_balance_cents;not null;default:0"`
	WalletEarningsCents int64      `gorm:"column:wallet_earnings_cents;not null;default:0"`
	IsBlocked           bool       `gorm:"column:is_blocked;not null;default:false"`
	BlockReason         *string    `gorm:"column:block_reason"`
	BlockedAt           *time.Time `gorm:"column:blocked_at"`
	LastEvaluatedAt     *time.Time `gorm:"column:last_evaluated_at"`
	Version             int64      `gorm:"column:version;not null;default:0"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vendor) TableName() string { return "vendors" }
