package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// CashEventRecordedEvent carries a committed cash event and the balances it produced.
type CashEventRecordedEvent struct {
	CashEventID         uuid.UUID           `json:"cash_event_id"`
	VendorID            uuid.UUID           `json:"vendor_id"`
	BookingID           *uuid.UUID          `json:"booking_id,omitempty"`
	Type                enums.CashEventType `json:"type"`
	AmountCents         int64               `json:"amount_cents"`
	DueBalanceCents     int64               `json:"due_balance_cents"`
	WalletEarningsCents int64               `json:"wallet_earnings_cents"`
	RecordedAt          time.Time           `json:"recorded_at"`
}

// VendorBlockChangedEvent is emitted for both blocks and unblocks.
type VendorBlockChangedEvent struct {
	VendorID        uuid.UUID `json:"vendor_id"`
	Blocked         bool      `json:"blocked"`
	Reason          string    `json:"reason,omitempty"`
	Automatic       bool      `json:"automatic"`
	DueBalanceCents int64     `json:"due_balance_cents"`
	CashLimitCents  int64     `json:"cash_limit_cents"`
}

// VendorCashLimitUpdatedEvent records an admin change of a vendor's limit.
type VendorCashLimitUpdatedEvent struct {
	VendorID               uuid.UUID `json:"vendor_id"`
	PreviousCashLimitCents int64     `json:"previous_cash_limit_cents"`
	CashLimitCents         int64     `json:"cash_limit_cents"`
	DueBalanceCents        int64     `json:"due_balance_cents"`
}

// VendorBalanceRepairedEvent is emitted when reconciliation overwrote drifted cached balances.
type VendorBalanceRepairedEvent struct {
	VendorID                    uuid.UUID `json:"vendor_id"`
	PreviousDueBalanceCents     int64     `json:"previous_due_balance_cents"`
	DueBalanceCents             int64     `json:"due_balance_cents"`
	PreviousWalletEarningsCents int64     `json:"previous_wallet_earnings_cents"`
	WalletEarningsCents         int64     `json:"wallet_earnings_cents"`
}

// SettlementEvent covers submission and both decisions.
type SettlementEvent struct {
	SettlementID    uuid.UUID                     `json:"settlement_id"`
	VendorID        uuid.UUID                     `json:"vendor_id"`
	AmountCents     int64                         `json:"amount_cents"`
	AppliedCents    int64                         `json:"applied_cents"`
	PaymentMethod   enums.SettlementPaymentMethod `json:"payment_method"`
	Status          enums.SettlementStatus        `json:"status"`
	RejectionReason string                        `json:"rejection_reason,omitempty"`
	DueBalanceCents int64                         `json:"due_balance_cents"`
}

// SettlementStaleEvent reminds admins about a settlement left pending too long.
type SettlementStaleEvent struct {
	SettlementID uuid.UUID `json:"settlement_id"`
	VendorID     uuid.UUID `json:"vendor_id"`
	AmountCents  int64     `json:"amount_cents"`
	SubmittedAt  time.Time `json:"submitted_at"`
	PendingHours int       `json:"pending_hours"`
}

// WithdrawalEvent covers requests and both decisions.
type WithdrawalEvent struct {
	WithdrawalID         uuid.UUID              `json:"withdrawal_id"`
	VendorID             uuid.UUID              `json:"vendor_id"`
	AmountCents          int64                  `json:"amount_cents"`
	Status               enums.WithdrawalStatus `json:"status"`
	TransactionReference string                 `json:"transaction_reference,omitempty"`
	RejectionReason      string                 `json:"rejection_reason,omitempty"`
	WalletEarningsCents  int64                  `json:"wallet_earnings_cents"`
}
