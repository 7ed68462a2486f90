package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// CashEvent is an immutable cash or wallet fact for a vendor. Rows are never updated.
type CashEvent struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	BookingID   *uuid.UUID          `gorm:"column:booking_id;type:uuid;uniqueIndex:cash_events_booking_type_key,priority:1"`
	Type        enums.CashEventType `gorm:"column:type;type:cash_event_type;not null;uniqueIndex:cash_events_booking_type_key,priority:2"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Note        *string             `gorm:"column:note"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (CashEvent) TableName() string { return "cash_events" }
