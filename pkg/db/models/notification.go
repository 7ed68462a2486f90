package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// Notification is one vendor inbox entry, written once per (event, vendor).
// SubjectID points at the settlement or withdrawal the entry is about and is
// nil for account-level notices.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	VendorID  uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:notifications_event_vendor_key,priority:2"`
	EventID   uuid.UUID              `gorm:"column:event_id;type:uuid;not null;uniqueIndex:notifications_event_vendor_key,priority:1"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	SubjectID *uuid.UUID             `gorm:"column:subject_id;type:uuid"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

// Unread reports whether the vendor has not opened the entry yet.
func (n Notification) Unread() bool { return n.ReadAt == nil }
