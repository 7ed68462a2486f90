package enums

import "slices"

// CashEventType maps to the cash_event_type enum in Postgres.
type CashEventType string

const (
	CashEventCashCollected CashEventType = "cash_collected"
	CashEventCredit        CashEventType = "credit"
	CashEventDebit         CashEventType = "debit"
	CashEventPayment       CashEventType = "payment"
	CashEventRefund        CashEventType = "refund"
)

var validCashEventTypes = []CashEventType{
	CashEventCashCollected,
	CashEventCredit,
	CashEventDebit,
	CashEventPayment,
	CashEventRefund,
}

// IsValid reports whether the value matches the canonical cash event enum.
func (t CashEventType) IsValid() bool {
	return slices.Contains(validCashEventTypes, t)
}

// AffectsDue reports whether the event moves the amount owed to the platform.
func (t CashEventType) AffectsDue() bool {
	return t == CashEventCashCollected
}

// WalletDirection returns +1 for wallet credits, -1 for wallet debits and 0 otherwise.
func (t CashEventType) WalletDirection() int {
	switch t {
	case CashEventCredit, CashEventPayment:
		return 1
	case CashEventDebit, CashEventRefund:
		return -1
	default:
		return 0
	}
}

// ParseCashEventType converts raw input into CashEventType.
func ParseCashEventType(value string) (CashEventType, error) {
	return parse("cash event type", validCashEventTypes, value)
}
