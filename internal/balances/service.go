package balances

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/internal/creditguard"
	"github.com/angelmondragon/vendorledger/internal/repo"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/money"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

const vendorNotFound = "vendor not found"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service answers balance queries and checks cached balances against history.
type Service interface {
	DueBalance(ctx context.Context, vendorID uuid.UUID) (int64, error)
	WalletEarnings(ctx context.Context, vendorID uuid.UUID) (int64, error)
	Snapshot(ctx context.Context, vendorID uuid.UUID) (*Snapshot, error)
	Recompute(ctx context.Context, vendorID uuid.UUID) (*Derived, error)
	Reconcile(ctx context.Context, vendorID uuid.UUID, repair bool) (*Drift, error)
}

// Derived holds balances computed from recorded history.
type Derived struct {
	DueBalanceCents     int64 `json:"due_balance_cents"`
	WalletEarningsCents int64 `json:"wallet_earnings_cents"`
}

// Snapshot is the read model of a vendor's cached balance state.
type Snapshot struct {
	VendorID            uuid.UUID       `json:"vendor_id"`
	DueBalanceCents     int64           `json:"due_balance_cents"`
	WalletEarningsCents int64           `json:"wallet_earnings_cents"`
	CashLimitCents      int64           `json:"cash_limit_cents"`
	LimitRatio          decimal.Decimal `json:"limit_ratio"`
	IsBlocked           bool            `json:"is_blocked"`
	BlockReason         *string         `json:"block_reason,omitempty"`
	BlockedAt           *time.Time      `json:"blocked_at,omitempty"`
	LastEvaluatedAt     *time.Time      `json:"last_evaluated_at,omitempty"`
	Version             int64           `json:"version"`
}

// SnapshotOf projects a vendor row into a Snapshot.
func SnapshotOf(v *models.Vendor) *Snapshot {
	return &Snapshot{
		VendorID:            v.ID,
		DueBalanceCents:     v.DueBalanceCents,
		WalletEarningsCents: v.WalletEarningsCents,
		CashLimitCents:      v.CashLimitCents,
		LimitRatio:          money.Ratio(v.DueBalanceCents, v.CashLimitCents),
		IsBlocked:           v.IsBlocked,
		BlockReason:         v.BlockReason,
		BlockedAt:           v.BlockedAt,
		LastEvaluatedAt:     v.LastEvaluatedAt,
		Version:             v.Version,
	}
}

// Drift compares cached balances with those derived from history.
type Drift struct {
	VendorID uuid.UUID `json:"vendor_id"`
	Cached   Derived   `json:"cached"`
	Derived  Derived   `json:"derived"`
	Repaired bool      `json:"repaired"`
}

// Detected reports whether cached and derived balances disagree.
func (d Drift) Detected() bool {
	return d.Cached != d.Derived
}

type service struct {
	vendors vendors.Repository
	history HistoryRepository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
}

// NewService wires the balance service.
func NewService(vendorRepo vendors.Repository, history HistoryRepository, tx txRunner, emitter outbox.Emitter, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if vendorRepo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if history == nil {
		return nil, fmt.Errorf("history repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		vendors: vendorRepo,
		history: history,
		tx:      tx,
		outbox:  emitter,
		metrics: m,
		logg:    logg,
	}, nil
}

func (s *service) DueBalance(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	snapshot, err := s.Snapshot(ctx, vendorID)
	if err != nil {
		return 0, err
	}
	return snapshot.DueBalanceCents, nil
}

func (s *service) WalletEarnings(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	snapshot, err := s.Snapshot(ctx, vendorID)
	if err != nil {
		return 0, err
	}
	return snapshot.WalletEarningsCents, nil
}

func (s *service) Snapshot(ctx context.Context, vendorID uuid.UUID) (*Snapshot, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	vendor, err := s.vendors.Get(ctx, vendorID)
	if err != nil {
		return nil, repo.Classify(err, vendorNotFound, "load vendor")
	}
	return SnapshotOf(vendor), nil
}

func (s *service) Recompute(ctx context.Context, vendorID uuid.UUID) (*Derived, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if _, err := s.vendors.Get(ctx, vendorID); err != nil {
		return nil, repo.Classify(err, vendorNotFound, "load vendor")
	}
	totals, err := s.history.Totals(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum vendor history")
	}
	derived := totals.Derive()
	return &derived, nil
}

// Reconcile re-derives both balances under the vendor lock. When repair is
// set and the cache has drifted, the cached balances are overwritten and the
// block rule is re-evaluated against the corrected due balance.
func (s *service) Reconcile(ctx context.Context, vendorID uuid.UUID, repair bool) (*Drift, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	var (
		drift   Drift
		tripped bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repoTx := s.vendors.WithTx(tx)
		vendor, err := repoTx.GetForUpdate(ctx, vendorID)
		if err != nil {
			return repo.Classify(err, vendorNotFound, "load vendor")
		}
		totals, err := s.history.WithTx(tx).Totals(ctx, vendorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum vendor history")
		}

		drift = Drift{
			VendorID: vendorID,
			Cached: Derived{
				DueBalanceCents:     vendor.DueBalanceCents,
				WalletEarningsCents: vendor.WalletEarningsCents,
			},
			Derived: totals.Derive(),
		}
		if !drift.Detected() || !repair {
			return nil
		}

		vendor.DueBalanceCents = drift.Derived.DueBalanceCents
		vendor.WalletEarningsCents = drift.Derived.WalletEarningsCents
		tripped, err = creditguard.NewGuard(s.outbox).Check(ctx, tx, vendor, systemActor())
		if err != nil {
			return err
		}
		if err := repoTx.Save(ctx, vendor); err != nil {
			return repo.Classify(err, vendorNotFound, "repair vendor balance")
		}
		drift.Repaired = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorBalanceRepaired,
			AggregateType: enums.AggregateVendor,
			AggregateID:   vendorID,
			Actor:         systemActor(),
			Data: payloads.VendorBalanceRepairedEvent{
				VendorID:                    vendorID,
				PreviousDueBalanceCents:     drift.Cached.DueBalanceCents,
				DueBalanceCents:             drift.Derived.DueBalanceCents,
				PreviousWalletEarningsCents: drift.Cached.WalletEarningsCents,
				WalletEarningsCents:         drift.Derived.WalletEarningsCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if drift.Detected() {
		s.metrics.IncDrift(drift.Repaired)
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"vendor_id":      vendorID.String(),
			"cached_due":     drift.Cached.DueBalanceCents,
			"derived_due":    drift.Derived.DueBalanceCents,
			"cached_wallet":  drift.Cached.WalletEarningsCents,
			"derived_wallet": drift.Derived.WalletEarningsCents,
			"repaired":       drift.Repaired,
		})
		s.logg.Warn(logCtx, "vendor balance drift detected")
	}
	if tripped {
		s.metrics.IncAutoBlock()
	}
	return &drift, nil
}

func systemActor() *outbox.ActorRef {
	return &outbox.ActorRef{Role: enums.ActorRoleSystem}
}
