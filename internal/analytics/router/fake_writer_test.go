package router

import (
	"context"
	"sync"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
)

// fakeWriter records rows in insert order; a non-nil err fails every insert.
type fakeWriter struct {
	mu       sync.Mutex
	inserted []types.LedgerEventRow
	err      error
}

func (f *fakeWriter) InsertLedgerEvent(_ context.Context, row types.LedgerEventRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}
