package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const reconcileBatchSize = 200

type BalanceReconcileJobParams struct {
	Logger    *logger.Logger
	Vendors   vendorLister
	Balances  balanceReconciler
	Repair    bool
	BatchSize int
}

type vendorLister interface {
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type balanceReconciler interface {
	Reconcile(ctx context.Context, vendorID uuid.UUID, repair bool) (*balances.Drift, error)
}

// NewBalanceReconcileJob walks every vendor and compares cached balances with
// their cash-event and settlement history. Drift is repaired only when Repair is set.
func NewBalanceReconcileJob(params BalanceReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	if params.Balances == nil {
		return nil, fmt.Errorf("balance service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = reconcileBatchSize
	}
	return &balanceReconcileJob{
		logg:     params.Logger,
		vendors:  params.Vendors,
		balances: params.Balances,
		repair:   params.Repair,
		batch:    batch,
	}, nil
}

type balanceReconcileJob struct {
	logg     *logger.Logger
	vendors  vendorLister
	balances balanceReconciler
	repair   bool
	batch    int
}

func (j *balanceReconcileJob) Name() string { return "balance-reconcile" }

func (j *balanceReconcileJob) Run(ctx context.Context) error {
	var (
		after    = uuid.Nil
		checked  int
		drifted  int
		repaired int
		errs     error
	)
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		ids, err := j.vendors.ListIDs(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list vendors: %w", err))
		}
		for _, id := range ids {
			checked++
			drift, err := j.balances.Reconcile(ctx, id, j.repair)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile vendor %s: %w", id, err))
				continue
			}
			if drift == nil || !drift.Detected() {
				continue
			}
			drifted++
			if drift.Repaired {
				repaired++
			}
		}
		if len(ids) < j.batch {
			break
		}
		after = ids[len(ids)-1]
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"vendors_checked": checked,
		"drift_detected":  drifted,
		"drift_repaired":  repaired,
		"repair_enabled":  j.repair,
		"failures":        len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "balance reconcile complete")
	return errs
}
