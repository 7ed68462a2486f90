package enums

import "slices"

// SettlementPaymentMethod describes how a vendor remitted collected cash to the platform.
type SettlementPaymentMethod string

const (
	SettlementMethodBankTransfer SettlementPaymentMethod = "bank_transfer"
	SettlementMethodUPI          SettlementPaymentMethod = "upi"
	SettlementMethodCashDeposit  SettlementPaymentMethod = "cash_deposit"
	SettlementMethodCheque       SettlementPaymentMethod = "cheque"
	SettlementMethodOther        SettlementPaymentMethod = "other"
)

var validSettlementPaymentMethods = []SettlementPaymentMethod{
	SettlementMethodBankTransfer,
	SettlementMethodUPI,
	SettlementMethodCashDeposit,
	SettlementMethodCheque,
	SettlementMethodOther,
}

func (m SettlementPaymentMethod) IsValid() bool {
	return slices.Contains(validSettlementPaymentMethods, m)
}

func ParseSettlementPaymentMethod(value string) (SettlementPaymentMethod, error) {
	return parse("settlement payment method", validSettlementPaymentMethods, value)
}
