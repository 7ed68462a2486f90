package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "notification-cleanup"}, nil, &stubJob{name: "balance-reconcile"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	names := registry.Names()
	if len(names) != 2 || names[0] != "notification-cleanup" || names[1] != "balance-reconcile" {
		t.Fatalf("unexpected names %v", names)
	}

	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "stale-settlements"}, &stubJob{name: "stale-settlements"}); err == nil {
		t.Fatalf("expected duplicate job names to fail")
	}

	registry := &Registry{}
	if err := registry.Register(&stubJob{}); err == nil {
		t.Fatalf("expected empty job name to fail")
	}
}

func TestRegistrySelect(t *testing.T) {
	registry, err := NewRegistry(
		&stubJob{name: "notification-cleanup"},
		&stubJob{name: "outbox-retention"},
		&stubJob{name: "balance-reconcile"},
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	all, err := registry.Select()
	if err != nil || len(all.Jobs()) != 3 {
		t.Fatalf("empty selection should keep every job: %v", err)
	}

	picked, err := registry.Select("balance-reconcile", "notification-cleanup")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	names := picked.Names()
	if len(names) != 2 || names[0] != "notification-cleanup" || names[1] != "balance-reconcile" {
		t.Fatalf("selection must keep registry order, got %v", names)
	}

	if _, err := registry.Select("vacuum"); err == nil {
		t.Fatal("unknown job accepted")
	}
}
