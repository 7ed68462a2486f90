package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// LedgerEventRow is one row of the ledger_events table. Balance columns hold
// the vendor's cached balances right after the event committed; nil pointers
// are written as NULL.
type LedgerEventRow struct {
	EventID             string
	EventType           string
	OccurredAt          time.Time
	AggregateType       string
	AggregateID         string
	VendorID            string
	ActorRole           *string
	CashEventType       *string
	Status              *string
	AmountCents         *int64
	AppliedCents        *int64
	DueBalanceCents     *int64
	WalletEarningsCents *int64
	CashLimitCents      *int64
	Blocked             *bool
	Automatic           *bool
	Payload             cbigquery.NullJSON
}

// LedgerEventSchema is the ledger_events table layout, partitioned by day on
// occurred_at.
var LedgerEventSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
	{Name: "aggregate_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "aggregate_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "vendor_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "actor_role", Type: cbigquery.StringFieldType},
	{Name: "cash_event_type", Type: cbigquery.StringFieldType},
	{Name: "status", Type: cbigquery.StringFieldType},
	{Name: "amount_cents", Type: cbigquery.IntegerFieldType},
	{Name: "applied_cents", Type: cbigquery.IntegerFieldType},
	{Name: "due_balance_cents", Type: cbigquery.IntegerFieldType},
	{Name: "wallet_earnings_cents", Type: cbigquery.IntegerFieldType},
	{Name: "cash_limit_cents", Type: cbigquery.IntegerFieldType},
	{Name: "blocked", Type: cbigquery.BooleanFieldType},
	{Name: "automatic", Type: cbigquery.BooleanFieldType},
	{Name: "payload", Type: cbigquery.JSONFieldType},
}

const LedgerEventPartitionField = "occurred_at"

// Save implements bigquery.ValueSaver. The event id doubles as the insert
// id so BigQuery drops retried streaming inserts of the same event.
func (r *LedgerEventRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":              r.EventID,
		"event_type":            r.EventType,
		"occurred_at":           r.OccurredAt.UTC(),
		"aggregate_type":        r.AggregateType,
		"aggregate_id":          r.AggregateID,
		"vendor_id":             r.VendorID,
		"actor_role":            nullable(r.ActorRole),
		"cash_event_type":       nullable(r.CashEventType),
		"status":                nullable(r.Status),
		"amount_cents":          nullable(r.AmountCents),
		"applied_cents":         nullable(r.AppliedCents),
		"due_balance_cents":     nullable(r.DueBalanceCents),
		"wallet_earnings_cents": nullable(r.WalletEarningsCents),
		"cash_limit_cents":      nullable(r.CashLimitCents),
		"blocked":               nullable(r.Blocked),
		"automatic":             nullable(r.Automatic),
		"payload":               nil,
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}

func nullable[T any](v *T) cbigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}
