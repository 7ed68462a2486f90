package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/vendorledger/internal/analytics/writer"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

// ledgerRow flattens a decoded payload into the typed columns of a
// ledger_events row. Columns a payload does not carry stay NULL.
func ledgerRow(envelope types.Envelope, payload any) (types.LedgerEventRow, error) {
	var (
		vendorID uuid.UUID
		occurred time.Time
		fill     func(*types.LedgerEventRow)
	)
	switch event := payload.(type) {
	case payloads.CashEventRecordedEvent:
		vendorID, occurred = event.VendorID, event.RecordedAt
		fill = func(row *types.LedgerEventRow) {
			row.CashEventType = optional(string(event.Type))
			row.AmountCents = ptr(event.AmountCents)
			row.DueBalanceCents = ptr(event.DueBalanceCents)
			row.WalletEarningsCents = ptr(event.WalletEarningsCents)
		}
	case payloads.SettlementEvent:
		vendorID = event.VendorID
		fill = func(row *types.LedgerEventRow) {
			row.Status = optional(string(event.Status))
			row.AmountCents = ptr(event.AmountCents)
			row.AppliedCents = ptr(event.AppliedCents)
			row.DueBalanceCents = ptr(event.DueBalanceCents)
		}
	case payloads.SettlementStaleEvent:
		vendorID = event.VendorID
		fill = func(row *types.LedgerEventRow) {
			row.Status = optional(string(enums.SettlementPending))
			row.AmountCents = ptr(event.AmountCents)
		}
	case payloads.WithdrawalEvent:
		vendorID = event.VendorID
		fill = func(row *types.LedgerEventRow) {
			row.Status = optional(string(event.Status))
			row.AmountCents = ptr(event.AmountCents)
			row.WalletEarningsCents = ptr(event.WalletEarningsCents)
		}
	case payloads.VendorBlockChangedEvent:
		vendorID = event.VendorID
		fill = func(row *types.LedgerEventRow) {
			row.Blocked = ptr(event.Blocked)
			row.Automatic = ptr(event.Automatic)
			row.DueBalanceCents = ptr(event.DueBalanceCents)
			row.CashLimitCents = ptr(event.CashLimitCents)
		}
	case payloads.VendorCashLimitUpdatedEvent:
		vendorID = event.VendorID
		fill = func(row *types.LedgerEventRow) {
			row.CashLimitCents = ptr(event.CashLimitCents)
			row.DueBalanceCents = ptr(event.DueBalanceCents)
		}
	case payloads.VendorBalanceRepairedEvent:
		vendorID = event.VendorID
		fill = func(row *types.LedgerEventRow) {
			row.DueBalanceCents = ptr(event.DueBalanceCents)
			row.WalletEarningsCents = ptr(event.WalletEarningsCents)
		}
	default:
		return types.LedgerEventRow{}, fmt.Errorf("no row mapping for %T (%s)", payload, envelope.EventType)
	}

	row, err := baseRow(envelope, vendorID, occurred, payload)
	if err != nil {
		return types.LedgerEventRow{}, err
	}
	fill(&row)
	return row, nil
}

// baseRow fills the columns every ledger event carries. occurred wins over the
// envelope timestamp when the payload records its own time.
func baseRow(envelope types.Envelope, vendorID uuid.UUID, occurred time.Time, payload any) (types.LedgerEventRow, error) {
	if vendorID == uuid.Nil {
		return types.LedgerEventRow{}, fmt.Errorf("vendor id missing for %s", envelope.EventType)
	}
	if occurred.IsZero() {
		occurred = envelope.OccurredAt
	}
	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.LedgerEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.LedgerEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    occurred.UTC(),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		VendorID:      vendorID.String(),
		ActorRole:     optional(envelope.ActorRole),
		Payload:       payloadJSON,
	}, nil
}

func ptr[T any](v T) *T { return &v }

// optional maps blank strings to a NULL column.
func optional(value string) *string {
	if value = strings.TrimSpace(value); value == "" {
		return nil
	}
	return &value
}
