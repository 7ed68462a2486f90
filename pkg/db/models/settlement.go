package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// Settlement is a vendor's claim of having remitted collected cash to the platform.
// AppliedCents records how much of AmountCents actually reduced the due balance.
type Settlement struct {
	ID               uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	VendorID         uuid.UUID                     `gorm:"column:vendor_id;type:uuid;not null"`
	AmountCents      int64                         `gorm:"column:amount_cents;not null"`
	AppliedCents     int64                         `gorm:"column:applied_cents;not null;default:0"`
	PaymentMethod    enums.SettlementPaymentMethod `gorm:"column:payment_method;not null"`
	PaymentReference string                        `gorm:"column:payment_reference;not null"`
	PaymentProofURL  *string                       `gorm:"column:payment_proof_url"`
	VendorNotes      *string                       `gorm:"column:vendor_notes"`
	Status           enums.SettlementStatus        `gorm:"column:status;type:settlement_status;not null"`
	RejectionReason  *string                       `gorm:"column:rejection_reason"`
	DecidedBy        *uuid.UUID                    `gorm:"column:decided_by;type:uuid"`
	DecidedAt        *time.Time                    `gorm:"column:decided_at"`
	CreatedAt        time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

func (Settlement) TableName() string { return "settlements" }
