package types

import "time"

// LedgerQueryRequest scopes ledger analytics to a window and optionally one vendor.
type LedgerQueryRequest struct {
	VendorID string
	Start    time.Time
	End      time.Time
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue represents a top-N entry such as a vendor id.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// LedgerQueryResponse wraps the ledger KPIs for the admin dashboard.
type LedgerQueryResponse struct {
	CashCollected       []TimeSeriesPoint `json:"cash_collected"`
	SettlementsApproved []TimeSeriesPoint `json:"settlements_approved"`
	WithdrawalsPaid     []TimeSeriesPoint `json:"withdrawals_paid"`
	TopCashVendors      []LabelValue      `json:"top_cash_vendors"`
	AutoBlocks          int64             `json:"auto_blocks"`
}
