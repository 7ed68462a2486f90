package creditguard

import (
	"testing"
	"time"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
)

func TestEvaluateBlocksAtLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	v := &models.Vendor{CashLimitCents: 50000, DueBalanceCents: 50000}

	if !Evaluate(v, now) {
		t.Fatal("expected vendor at limit to be blocked")
	}
	if !v.IsBlocked || v.BlockReason == nil || *v.BlockReason != AutoBlockReason {
		t.Fatalf("unexpected block state %+v", v)
	}
	if v.BlockedAt == nil || !v.BlockedAt.Equal(now) {
		t.Fatalf("expected blocked_at %v, got %v", now, v.BlockedAt)
	}
}

func TestEvaluateBelowLimitStampsOnly(t *testing.T) {
	now := time.Now()
	v := &models.Vendor{CashLimitCents: 50000, DueBalanceCents: 49999}

	if Evaluate(v, now) {
		t.Fatal("vendor below limit must not be blocked")
	}
	if v.IsBlocked {
		t.Fatal("unexpected block")
	}
	if v.LastEvaluatedAt == nil {
		t.Fatal("expected evaluation timestamp")
	}
}

func TestEvaluateNeverUnblocks(t *testing.T) {
	reason := "manual review"
	v := &models.Vendor{CashLimitCents: 50000, DueBalanceCents: 0, IsBlocked: true, BlockReason: &reason}

	if Evaluate(v, time.Now()) {
		t.Fatal("already blocked vendor should not report a new block")
	}
	if !v.IsBlocked || *v.BlockReason != reason {
		t.Fatalf("block state must survive evaluation, got %+v", v)
	}
}
