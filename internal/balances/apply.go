// Package balances owns the two per-vendor balances: the due balance
// (cash collected on the platform's behalf and not yet settled) and wallet
// earnings (money the platform owes the vendor).
package balances

import (
	"math"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/money"
)

// ApplyCashEvent folds a single cash event into the vendor's cached balances.
// Wallet outflows that would take the wallet below zero, and credits that
// would overflow either balance, are rejected and leave v untouched.
func ApplyCashEvent(v *models.Vendor, eventType enums.CashEventType, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if amountCents > money.MaxCents {
		return money.ErrTooLarge
	}
	if !eventType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid cash event type")
	}
	if eventType.AffectsDue() {
		if v.DueBalanceCents > math.MaxInt64-amountCents {
			return balanceOverflow("due balance", v.DueBalanceCents, amountCents)
		}
		v.DueBalanceCents += amountCents
		return nil
	}
	switch eventType.WalletDirection() {
	case 1:
		if v.WalletEarningsCents > math.MaxInt64-amountCents {
			return balanceOverflow("wallet earnings", v.WalletEarningsCents, amountCents)
		}
		v.WalletEarningsCents += amountCents
	case -1:
		return DebitWallet(v, amountCents)
	}
	return nil
}

// ApplySettlement reduces the due balance by an approved settlement and
// returns the portion actually applied. Overshoot beyond the due balance is
// dropped so the balance floors at zero.
func ApplySettlement(v *models.Vendor, amountCents int64) int64 {
	if amountCents <= 0 {
		return 0
	}
	applied := amountCents
	if applied > v.DueBalanceCents {
		applied = v.DueBalanceCents
	}
	v.DueBalanceCents -= applied
	return applied
}

// DebitWallet removes amountCents from wallet earnings.
func DebitWallet(v *models.Vendor, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if v.WalletEarningsCents < amountCents {
		return InsufficientWallet(v.WalletEarningsCents, amountCents)
	}
	v.WalletEarningsCents -= amountCents
	return nil
}

// InsufficientWallet builds the error returned when a wallet outflow exceeds earnings.
func InsufficientWallet(availableCents, requestedCents int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient wallet earnings").
		WithDetails(map[string]any{
			"available_cents": availableCents,
			"requested_cents": requestedCents,
		})
}

func balanceOverflow(balance string, currentCents, amountCents int64) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "amount would overflow the %s", balance).
		WithDetails(map[string]any{
			"current_cents": currentCents,
			"amount_cents":  amountCents,
		})
}
