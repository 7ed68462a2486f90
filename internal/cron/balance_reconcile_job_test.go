package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

type fakeVendorLister struct {
	ids   []uuid.UUID
	calls []uuid.UUID
	err   error
}

func (f *fakeVendorLister) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	f.calls = append(f.calls, after)
	if f.err != nil {
		return nil, f.err
	}
	start := 0
	if after != uuid.Nil {
		for i, id := range f.ids {
			if id == after {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.ids) {
		end = len(f.ids)
	}
	return f.ids[start:end], nil
}

type fakeReconciler struct {
	drift   map[uuid.UUID]balances.Derived
	fail    map[uuid.UUID]error
	visited []uuid.UUID
	repair  []bool
}

func (f *fakeReconciler) Reconcile(ctx context.Context, vendorID uuid.UUID, repair bool) (*balances.Drift, error) {
	f.visited = append(f.visited, vendorID)
	f.repair = append(f.repair, repair)
	if err, ok := f.fail[vendorID]; ok {
		return nil, err
	}
	drift := &balances.Drift{VendorID: vendorID}
	if derived, ok := f.drift[vendorID]; ok {
		drift.Derived = derived
		drift.Repaired = repair
	}
	return drift, nil
}

func newReconcileJob(t *testing.T, lister *fakeVendorLister, rec *fakeReconciler, repair bool) Job {
	t.Helper()
	job, err := NewBalanceReconcileJob(BalanceReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Vendors:   lister,
		Balances:  rec,
		Repair:    repair,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("NewBalanceReconcileJob: %v", err)
	}
	return job
}

func TestBalanceReconcileJobPagesThroughVendors(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	lister := &fakeVendorLister{ids: ids}
	rec := &fakeReconciler{drift: map[uuid.UUID]balances.Derived{ids[3]: {DueBalanceCents: 500}}}

	if err := newReconcileJob(t, lister, rec, true).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.visited) != len(ids) {
		t.Fatalf("expected %d reconciles, got %d", len(ids), len(rec.visited))
	}
	for i, id := range ids {
		if rec.visited[i] != id {
			t.Fatalf("vendor %d visited out of order", i)
		}
		if !rec.repair[i] {
			t.Fatalf("expected repair flag forwarded for vendor %d", i)
		}
	}
	if len(lister.calls) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(lister.calls))
	}
	if lister.calls[1] != ids[1] || lister.calls[2] != ids[3] {
		t.Fatalf("unexpected page cursors %v", lister.calls)
	}
}

func TestBalanceReconcileJobContinuesPastFailures(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	lister := &fakeVendorLister{ids: ids}
	rec := &fakeReconciler{fail: map[uuid.UUID]error{
		ids[0]: errors.New("lock timeout"),
		ids[2]: errors.New("connection reset"),
	}}

	err := newReconcileJob(t, lister, rec, false).Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 errors, got %d", got)
	}
	if len(rec.visited) != 3 {
		t.Fatalf("expected every vendor visited, got %d", len(rec.visited))
	}
}

func TestBalanceReconcileJobListFailure(t *testing.T) {
	lister := &fakeVendorLister{err: errors.New("db down")}
	rec := &fakeReconciler{}

	if err := newReconcileJob(t, lister, rec, false).Run(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
	if len(rec.visited) != 0 {
		t.Fatalf("expected no reconciles, got %d", len(rec.visited))
	}
}
