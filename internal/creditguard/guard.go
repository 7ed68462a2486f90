// Package creditguard enforces the per-vendor cash limit.
//
// A vendor is blocked automatically once the due balance reaches the cash
// limit. The guard never unblocks: only an administrator can clear the flag,
// and clearing it leaves the due balance untouched.
package creditguard

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

// AutoBlockReason is stored on vendors blocked by the guard.
const AutoBlockReason = "cash limit exceeded"

// Evaluate applies the block rule to v and stamps the evaluation time.
// It reports whether v moved from unblocked to blocked.
func Evaluate(v *models.Vendor, now time.Time) bool {
	evaluatedAt := now.UTC()
	v.LastEvaluatedAt = &evaluatedAt
	if v.IsBlocked || v.DueBalanceCents < v.CashLimitCents {
		return false
	}
	reason := AutoBlockReason
	v.IsBlocked = true
	v.BlockReason = &reason
	v.BlockedAt = &evaluatedAt
	return true
}

// Guard runs Evaluate inside a ledger transaction and queues the block event.
type Guard struct {
	outbox outbox.Emitter
	now    func() time.Time
}

// NewGuard builds a Guard that emits through the provided outbox.
func NewGuard(emitter outbox.Emitter) *Guard {
	return &Guard{outbox: emitter, now: time.Now}
}

// Check evaluates v and, when it trips, queues vendor_blocked on tx.
// The caller persists v in the same transaction.
func (g *Guard) Check(ctx context.Context, tx *gorm.DB, v *models.Vendor, actor *outbox.ActorRef) (bool, error) {
	if !Evaluate(v, g.now()) {
		return false, nil
	}
	err := g.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventVendorBlocked,
		AggregateType: enums.AggregateVendor,
		AggregateID:   v.ID,
		Actor:         actor,
		Data: payloads.VendorBlockChangedEvent{
			VendorID:        v.ID,
			Blocked:         true,
			Reason:          AutoBlockReason,
			Automatic:       true,
			DueBalanceCents: v.DueBalanceCents,
			CashLimitCents:  v.CashLimitCents,
		},
	})
	return true, err
}
