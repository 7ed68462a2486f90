package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// WithdrawalRequest is a vendor request to pay out wallet earnings to a bank account.
type WithdrawalRequest struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	VendorID             uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null"`
	AmountCents          int64                  `gorm:"column:amount_cents;not null"`
	BankDetails          types.BankDetails      `gorm:"column:bank_details;type:jsonb;not null"`
	Status               enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status;not null"`
	TransactionReference *string                `gorm:"column:transaction_reference"`
	AdminNotes           *string                `gorm:"column:admin_notes"`
	RejectionReason      *string                `gorm:"column:rejection_reason"`
	DecidedBy            *uuid.UUID             `gorm:"column:decided_by;type:uuid"`
	RequestedAt          time.Time              `gorm:"column:requested_at;autoCreateTime"`
	DecidedAt            *time.Time             `gorm:"column:decided_at"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (WithdrawalRequest) TableName() string { return "withdrawal_requests" }
