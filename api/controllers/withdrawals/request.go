package withdrawals

import (
	"github.com/angelmondragon/vendorledger/pkg/money"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type withdrawalRequest struct {
	Amount      money.Amount      `json:"amount" validate:"gt=0"`
	BankDetails types.BankDetails `json:"bankDetails"`
}

type approveRequest struct {
	TransactionReference string  `json:"transactionReference" validate:"required,max=120"`
	AdminNotes           *string `json:"adminNotes,omitempty" validate:"omitempty,max=1000"`
}

type rejectRequest struct {
	Reason     string  `json:"reason" validate:"required,max=500"`
	AdminNotes *string `json:"adminNotes,omitempty" validate:"omitempty,max=1000"`
}
