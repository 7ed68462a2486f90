package enums

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition is returned when a decision is applied to a record that already left pending.
var ErrInvalidTransition = errors.New("invalid status transition")

// SettlementStatus maps to the settlement_status enum in Postgres.
type SettlementStatus string

const (
	SettlementPending  SettlementStatus = "pending"
	SettlementApproved SettlementStatus = "approved"
	SettlementRejected SettlementStatus = "rejected"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementPending,
	SettlementApproved,
	SettlementRejected,
}

func (s SettlementStatus) IsValid() bool {
	return slices.Contains(validSettlementStatuses, s)
}

func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementApproved || s == SettlementRejected
}

// Approve returns the approved state, or ErrInvalidTransition unless s is pending.
func (s SettlementStatus) Approve() (SettlementStatus, error) {
	if s != SettlementPending {
		return s, fmt.Errorf("%w: settlement %s -> %s", ErrInvalidTransition, s, SettlementApproved)
	}
	return SettlementApproved, nil
}

// Reject returns the rejected state, or ErrInvalidTransition unless s is pending.
func (s SettlementStatus) Reject() (SettlementStatus, error) {
	if s != SettlementPending {
		return s, fmt.Errorf("%w: settlement %s -> %s", ErrInvalidTransition, s, SettlementRejected)
	}
	return SettlementRejected, nil
}

func ParseSettlementStatus(value string) (SettlementStatus, error) {
	return parse("settlement status", validSettlementStatuses, value)
}

// WithdrawalStatus maps to the withdrawal_status enum in Postgres.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

var validWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalPending,
	WithdrawalApproved,
	WithdrawalRejected,
}

func (s WithdrawalStatus) IsValid() bool {
	return slices.Contains(validWithdrawalStatuses, s)
}

func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// Approve returns the approved state, or ErrInvalidTransition unless s is pending.
func (s WithdrawalStatus) Approve() (WithdrawalStatus, error) {
	if s != WithdrawalPending {
		return s, fmt.Errorf("%w: withdrawal %s -> %s", ErrInvalidTransition, s, WithdrawalApproved)
	}
	return WithdrawalApproved, nil
}

// Reject returns the rejected state, or ErrInvalidTransition unless s is pending.
func (s WithdrawalStatus) Reject() (WithdrawalStatus, error) {
	if s != WithdrawalPending {
		return s, fmt.Errorf("%w: withdrawal %s -> %s", ErrInvalidTransition, s, WithdrawalRejected)
	}
	return WithdrawalRejected, nil
}

func ParseWithdrawalStatus(value string) (WithdrawalStatus, error) {
	return parse("withdrawal status", validWithdrawalStatuses, value)
}
