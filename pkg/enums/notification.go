package enums

import "slices"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeSettlement NotificationType = "settlement"
	NotificationTypeWithdrawal NotificationType = "withdrawal"
	NotificationTypeAccount    NotificationType = "account"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeSettlement,
	NotificationTypeWithdrawal,
	NotificationTypeAccount,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parse("notification type", validNotificationTypes, value)
}
