package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/vendorledger/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type runFunc func(ctx context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, deps []Dependency, consumers ...Consumer) *Service {
	t.Helper()
	if len(consumers) == 0 {
		consumers = []Consumer{
			{Name: "bookings", Runner: runFunc(blockUntilDone)},
			{Name: "notifications", Runner: runFunc(blockUntilDone)},
		}
	}
	svc, err := NewService(ServiceParams{
		Logger:            quietLogger(),
		Dependencies:      deps,
		Consumers:         consumers,
		HeartbeatInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewServiceValidatesParams(t *testing.T) {
	cases := map[string]ServiceParams{
		"no logger":    {Consumers: []Consumer{{Name: "x", Runner: runFunc(blockUntilDone)}}},
		"no consumers": {Logger: quietLogger()},
		"nil consumer": {Logger: quietLogger(), Consumers: []Consumer{{Name: "x"}}},
		"nil dependency": {
			Logger:       quietLogger(),
			Dependencies: []Dependency{{Name: "redis"}},
			Consumers:    []Consumer{{Name: "x", Runner: runFunc(blockUntilDone)}},
		},
	}
	for name, params := range cases {
		if _, err := NewService(params); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestRunReportsEveryDownDependency(t *testing.T) {
	started := false
	svc := newTestService(t,
		[]Dependency{
			{Name: "database", Check: stubPinger{}},
			{Name: "redis", Check: stubPinger{err: errors.New("refused")}},
			{Name: "pubsub", Check: stubPinger{err: errors.New("not found")}},
		},
		Consumer{Name: "bookings", Runner: runFunc(func(ctx context.Context) error { started = true; return nil })},
	)
	err := svc.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis") || !strings.Contains(err.Error(), "pubsub") {
		t.Fatalf("expected both failures, got %v", err)
	}
	if started {
		t.Fatal("consumers must not start before dependencies are ready")
	}
}

func TestRunStopsSiblingsOnConsumerFailure(t *testing.T) {
	boom := errors.New("subscription deleted")
	siblingStopped := make(chan struct{})
	svc := newTestService(t, nil,
		Consumer{Name: "bookings", Runner: runFunc(func(context.Context) error { return boom })},
		Consumer{Name: "notifications", Runner: runFunc(func(ctx context.Context) error {
			<-ctx.Done()
			close(siblingStopped)
			return ctx.Err()
		})},
	)
	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	select {
	case <-siblingStopped:
	default:
		t.Fatal("sibling consumer still running")
	}
}

func TestRunTreatsCleanExitAsFailure(t *testing.T) {
	svc := newTestService(t, nil,
		Consumer{Name: "bookings", Runner: runFunc(func(context.Context) error { return nil })},
		Consumer{Name: "notifications", Runner: runFunc(blockUntilDone)},
	)
	err := svc.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bookings consumer exited") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, []Dependency{{Name: "database", Check: stubPinger{}}})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
