package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateVendor     OutboxAggregateType = "vendor"
	AggregateCashEvent  OutboxAggregateType = "cash_event"
	AggregateSettlement OutboxAggregateType = "settlement"
	AggregateWithdrawal OutboxAggregateType = "withdrawal"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateVendor,
	AggregateCashEvent,
	AggregateSettlement,
	AggregateWithdrawal,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", validAggregateTypes, value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCashEventRecorded      OutboxEventType = "cash_event_recorded"
	EventVendorBlocked          OutboxEventType = "vendor_blocked"
	EventVendorUnblocked        OutboxEventType = "vendor_unblocked"
	EventVendorCashLimitUpdated OutboxEventType = "vendor_cash_limit_updated"
	EventVendorBalanceRepaired  OutboxEventType = "vendor_balance_repaired"
	EventSettlementSubmitted    OutboxEventType = "settlement_submitted"
	EventSettlementApproved     OutboxEventType = "settlement_approved"
	EventSettlementRejected     OutboxEventType = "settlement_rejected"
	EventSettlementStale        OutboxEventType = "settlement_stale"
	EventWithdrawalRequested    OutboxEventType = "withdrawal_requested"
	EventWithdrawalApproved     OutboxEventType = "withdrawal_approved"
	EventWithdrawalRejected     OutboxEventType = "withdrawal_rejected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCashEventRecorded,
	EventVendorBlocked,
	EventVendorUnblocked,
	EventVendorCashLimitUpdated,
	EventVendorBalanceRepaired,
	EventSettlementSubmitted,
	EventSettlementApproved,
	EventSettlementRejected,
	EventSettlementStale,
	EventWithdrawalRequested,
	EventWithdrawalApproved,
	EventWithdrawalRejected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", validOutboxEventTypes, value)
}

// OutboxDLQErrorReason records why an outbox row was parked in outbox_dlq.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonUndecodable marks rows whose stored envelope no longer resolves.
	OutboxDLQReasonUndecodable  OutboxDLQErrorReason = "undecodable"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonUndecodable, OutboxDLQReasonNonRetryable, OutboxDLQReasonMaxAttempts:
		return true
	}
	return false
}
