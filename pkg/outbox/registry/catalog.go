package registry

import (
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

// ledgerEvent is one row of the ledger event catalog. Both the publisher
// registry and the consumer decoders are built from the same list, so a new
// event type only needs adding here.
type ledgerEvent struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	newTarget func() any
	decode    decoderFunc
}

func catalogEntry[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) ledgerEvent {
	return ledgerEvent{
		eventType: eventType,
		aggregate: aggregate,
		newTarget: func() any { return new(T) },
		decode:    jsonDecoder[T](),
	}
}

var ledgerCatalog = []ledgerEvent{
	catalogEntry[payloads.CashEventRecordedEvent](enums.EventCashEventRecorded, enums.AggregateCashEvent),

	catalogEntry[payloads.VendorBlockChangedEvent](enums.EventVendorBlocked, enums.AggregateVendor),
	catalogEntry[payloads.VendorBlockChangedEvent](enums.EventVendorUnblocked, enums.AggregateVendor),
	catalogEntry[payloads.VendorCashLimitUpdatedEvent](enums.EventVendorCashLimitUpdated, enums.AggregateVendor),
	catalogEntry[payloads.VendorBalanceRepairedEvent](enums.EventVendorBalanceRepaired, enums.AggregateVendor),

	catalogEntry[payloads.SettlementEvent](enums.EventSettlementSubmitted, enums.AggregateSettlement),
	catalogEntry[payloads.SettlementEvent](enums.EventSettlementApproved, enums.AggregateSettlement),
	catalogEntry[payloads.SettlementEvent](enums.EventSettlementRejected, enums.AggregateSettlement),
	catalogEntry[payloads.SettlementStaleEvent](enums.EventSettlementStale, enums.AggregateSettlement),

	catalogEntry[payloads.WithdrawalEvent](enums.EventWithdrawalRequested, enums.AggregateWithdrawal),
	catalogEntry[payloads.WithdrawalEvent](enums.EventWithdrawalApproved, enums.AggregateWithdrawal),
	catalogEntry[payloads.WithdrawalEvent](enums.EventWithdrawalRejected, enums.AggregateWithdrawal),
}

// EventTypes lists every catalogued ledger event in catalog order.
func EventTypes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(ledgerCatalog))
	for _, ev := range ledgerCatalog {
		out = append(out, ev.eventType)
	}
	return out
}
