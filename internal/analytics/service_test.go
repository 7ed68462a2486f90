package analytics

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

type fakeLedgerService struct {
	calls    int
	response *types.LedgerQueryResponse
	err      error
}

func (f *fakeLedgerService) Query(context.Context, types.LedgerQueryRequest) (*types.LedgerQueryResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type memoryCache struct {
	values map[string]string
	getErr error
	setErr error
	ttls   []time.Duration
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = string(value.([]byte))
	m.ttls = append(m.ttls, ttl)
	return nil
}

func (m *memoryCache) CounterKey(name string) string { return "vl:counter:" + name }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard})
}

func window() types.LedgerQueryRequest {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return types.LedgerQueryRequest{VendorID: "vendor-1", Start: start, End: start.Add(24 * time.Hour)}
}

func TestQueryCachesResponses(t *testing.T) {
	ledger := &fakeLedgerService{response: &types.LedgerQueryResponse{AutoBlocks: 3}}
	cache := &memoryCache{}
	svc := newService(ledger, cache, 0, testLogger())

	for i := 0; i < 2; i++ {
		resp, err := svc.Query(context.Background(), window())
		if err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
		if resp.AutoBlocks != 3 {
			t.Fatalf("unexpected response %+v", resp)
		}
	}
	if ledger.calls != 1 {
		t.Fatalf("expected one bigquery call, got %d", ledger.calls)
	}
	if len(cache.ttls) != 1 || cache.ttls[0] != defaultCacheTTL {
		t.Fatalf("expected default ttl write, got %v", cache.ttls)
	}
}

func TestQueryFallsThroughOnCacheErrors(t *testing.T) {
	ledger := &fakeLedgerService{response: &types.LedgerQueryResponse{}}
	cache := &memoryCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	svc := newService(ledger, cache, time.Minute, testLogger())

	if _, err := svc.Query(context.Background(), window()); err != nil {
		t.Fatalf("cache failures must not fail the query: %v", err)
	}
	if ledger.calls != 1 {
		t.Fatalf("expected direct query, got %d calls", ledger.calls)
	}
}

func TestQueryPropagatesLedgerErrors(t *testing.T) {
	want := errors.New("query failed")
	cache := &memoryCache{}
	svc := newService(&fakeLedgerService{err: want}, cache, 0, testLogger())

	if _, err := svc.Query(context.Background(), window()); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if len(cache.values) != 0 {
		t.Fatal("failures must not be cached")
	}
}

func TestCacheKeyIgnoresSubMinuteJitter(t *testing.T) {
	a := window()
	b := a
	b.Start = b.Start.Add(20 * time.Second)
	if cacheKey(a) != cacheKey(b) {
		t.Fatal("expected same key within a minute")
	}
	b.VendorID = "vendor-2"
	if cacheKey(a) == cacheKey(b) {
		t.Fatal("expected vendor to change the key")
	}
}

func TestNewServiceRequiresClient(t *testing.T) {
	if _, err := NewService(nil, nil, 0, nil); err == nil {
		t.Fatal("expected error without client")
	}
}
