// Package money converts between the decimal amounts exposed on the API and the
// integer minor units (paise/cents) persisted in the ledger tables.
package money

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

const minorUnitExp = 2

// MaxCents is the largest single amount the ledger accepts. Keeping it a
// hundredth of the int64 range leaves room for balances to accumulate many
// maximal amounts before the balance arithmetic itself has to refuse.
const MaxCents int64 = math.MaxInt64 / 100

var (
	ErrTooPrecise = pkgerrors.New(pkgerrors.CodeValidation, "amount has more than two decimal places")
	ErrNegative   = pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	ErrTooLarge   = pkgerrors.Newf(pkgerrors.CodeValidation, "amount exceeds %s", ToDecimal(MaxCents).StringFixed(minorUnitExp))

	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(MaxCents)
)

// FromDecimal converts a major-unit decimal into minor units. Amounts above
// MaxCents are rejected rather than truncated.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	if !d.Equal(d.Round(minorUnitExp)) {
		return 0, ErrTooPrecise
	}
	minor := d.Mul(hundred)
	if !minor.IsInteger() {
		return 0, ErrTooPrecise
	}
	if minor.GreaterThan(maxMinor) {
		return 0, ErrTooLarge
	}
	return minor.IntPart(), nil
}

// ParseAmount parses a major-unit string such as "1200.50".
func ParseAmount(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	return FromDecimal(d)
}

// ToDecimal renders minor units as a major-unit decimal.
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorUnitExp)
}

// Ratio returns numerator/denominator rounded to four places. A zero denominator
// yields 0 for a zero numerator and 1 otherwise, so an unlimited vendor with dues
// renders as a full progress bar.
func Ratio(numerator, denominator int64) decimal.Decimal {
	if denominator <= 0 {
		if numerator <= 0 {
			return decimal.Zero
		}
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(numerator).DivRound(decimal.NewFromInt(denominator), 4)
}

// Amount is a minor-unit value that marshals as a JSON number in major units.
type Amount int64

func (a Amount) Cents() int64 { return int64(a) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(ToDecimal(int64(a)).StringFixed(minorUnitExp)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = 0
		return nil
	}
	cents, err := ParseAmount(string(trimmed))
	if err != nil {
		return err
	}
	*a = Amount(cents)
	return nil
}
