package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorledger/pkg/config"
)

type fakeStore struct {
	redis.Scripter
	data    map[string]string
	counts  map[string]int64
	expires map[string]time.Duration
	evals   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeStore) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.expires[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			n++
		}
		delete(f.data, key)
	}
	return redis.NewIntResult(n, nil)
}

// EvalSha runs the lock scripts natively, picked by hash.
func (f *fakeStore) EvalSha(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	f.evals++
	cmd := redis.NewCmd(ctx)
	if f.data[keys[0]] != fmt.Sprint(args[0]) {
		cmd.SetVal(int64(0))
		return cmd
	}
	switch sha {
	case releaseScript.Hash():
		delete(f.data, keys[0])
	case extendScript.Hash():
		f.expires[keys[0]] = time.Duration(args[1].(int64)) * time.Millisecond
	default:
		cmd.SetErr(fmt.Errorf("unexpected script %s", sha))
		return cmd
	}
	cmd.SetVal(int64(1))
	return cmd
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{Keyspace: DefaultKeyspace, store: store}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "submission:ip:1.2.3.4", 2, time.Minute)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
	}
	if ttl := store.expires["vl:rate_limit:submission:ip:1.2.3.4"]; ttl != time.Minute {
		t.Fatalf("expected window ttl, got %v", ttl)
	}
}

func TestIncrWithTTLRepairsMissingExpiry(t *testing.T) {
	store := newFakeStore()
	store.counts["k"] = 4
	client := &Client{store: store}

	count, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	if err != nil || count != 5 {
		t.Fatalf("count=%d err=%v", count, err)
	}
	if store.expires["k"] != time.Second {
		t.Fatalf("expected expiry on a counter that had none")
	}
}

func TestExtendIfHeldComparesToken(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{Keyspace: DefaultKeyspace, store: store}
	key := client.LockKey("cron-worker:prod")

	if ok, _ := client.SetNX(ctx, key, "worker-a", time.Minute); !ok {
		t.Fatalf("expected SetNX to win")
	}
	if extended, err := client.ExtendIfHeld(ctx, key, "worker-b", time.Hour); err != nil || extended {
		t.Fatalf("foreign token extended lock: extended=%v err=%v", extended, err)
	}
	if extended, err := client.ExtendIfHeld(ctx, key, "worker-a", time.Hour); err != nil || !extended {
		t.Fatalf("holder could not extend: extended=%v err=%v", extended, err)
	}
	if store.expires[key] != time.Hour {
		t.Fatalf("expected ttl of 1h, got %v", store.expires[key])
	}
	if _, err := (&Client{}).ExtendIfHeld(ctx, key, "worker-a", time.Hour); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestReleaseIfHeldComparesToken(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{Keyspace: DefaultKeyspace, store: store}
	key := client.LockKey("cron-worker:prod")

	if ok, _ := client.SetNX(ctx, key, "worker-a", time.Minute); !ok {
		t.Fatalf("expected first SetNX to win")
	}
	if released, err := client.ReleaseIfHeld(ctx, key, "worker-b"); err != nil || released {
		t.Fatalf("foreign token released lock: released=%v err=%v", released, err)
	}
	if released, err := client.ReleaseIfHeld(ctx, key, "worker-a"); err != nil || !released {
		t.Fatalf("holder could not release: released=%v err=%v", released, err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, Nil) {
		t.Fatalf("expected miss after release, got %v", err)
	}
	if store.evals != 2 {
		t.Fatalf("expected script per release, got %d", store.evals)
	}
}

func TestKeyspace(t *testing.T) {
	cases := map[string]string{
		DefaultKeyspace.Idempotency("settlements:submit", "key-1"): "vl:idempotency:settlements:submit:key-1",
		DefaultKeyspace.RateLimit("internal"):                       "vl:rate_limit:internal",
		DefaultKeyspace.Counter("analytics:ab12"):                   "vl:counter:analytics:ab12",
		DefaultKeyspace.Lock(" cron-worker "):                       "vl:lock:cron-worker",
		DefaultKeyspace.Idempotency("scope", ""):                    "vl:idempotency:scope",
		Keyspace("test").Key():                                      "test",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}

func TestZeroClientReportsNotConnected(t *testing.T) {
	var client Client
	if err := client.Ping(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := client.ReleaseIfHeld(context.Background(), "k", "t"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on zero client: %v", err)
	}
}

func TestOptionsPreferURL(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://:pw@cache:6380/2", Address: "ignored:1", PoolSize: 7})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options addr=%s db=%d pool=%d", opts.Addr, opts.DB, opts.PoolSize)
	}
	if _, err := options(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
}
