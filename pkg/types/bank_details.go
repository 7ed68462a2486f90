package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// BankDetails is the payout destination captured on a withdrawal request (stored as jsonb).
type BankDetails struct {
	AccountHolder string `json:"account_holder" validate:"required,max=120"`
	AccountNumber string `json:"account_number" validate:"required,min=6,max=34"`
	IFSC          string `json:"ifsc" validate:"required,min=4,max=20"`
	BankName      string `json:"bank_name,omitempty" validate:"omitempty,max=120"`
}

// Masked returns a copy safe for logs and notifications.
func (b BankDetails) Masked() BankDetails {
	masked := b
	number := strings.TrimSpace(b.AccountNumber)
	if len(number) > 4 {
		masked.AccountNumber = strings.Repeat("*", len(number)-4) + number[len(number)-4:]
	}
	return masked
}

// Value marshals BankDetails into JSON for the jsonb column.
func (b BankDetails) Value() (driver.Value, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("bank details: %w", err)
	}
	return string(payload), nil
}

// Scan decodes the jsonb column.
func (b *BankDetails) Scan(value interface{}) error {
	if value == nil {
		*b = BankDetails{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("bank details: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*b = BankDetails{}
		return nil
	}
	return json.Unmarshal(raw, b)
}
