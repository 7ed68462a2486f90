package settlements

import "github.com/angelmondragon/vendorledger/pkg/money"

type submitRequest struct {
	Amount           money.Amount `json:"amount" validate:"gt=0"`
	PaymentMethod    string       `json:"paymentMethod" validate:"required,settlement_method"`
	PaymentReference string       `json:"paymentReference" validate:"required,max=120"`
	PaymentProof     *string      `json:"paymentProof,omitempty" validate:"omitempty,max=2048"`
	VendorNotes      *string      `json:"vendorNotes,omitempty" validate:"omitempty,max=1000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
