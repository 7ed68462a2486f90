package env

import "testing"

func TestGetFallsBackWhenUnset(t *testing.T) {
	t.Setenv("VENDORLEDGER_TEST_VALUE", "")
	if got := Get("VENDORLEDGER_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("VENDORLEDGER_TEST_VALUE", "set")
	if got := Get("VENDORLEDGER_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestInstanceIDDefault(t *testing.T) {
	t.Setenv(workerIDVar, "")
	if got := InstanceID(); got != defaultWorker {
		t.Fatalf("expected %q, got %q", defaultWorker, got)
	}
	t.Setenv(workerIDVar, "ledger-worker-2")
	if got := InstanceID(); got != "ledger-worker-2" {
		t.Fatalf("expected ledger-worker-2, got %q", got)
	}
}
