package types

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeMessageFallsBackToAttributes(t *testing.T) {
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	env, err := DecodeMessage([]byte(`{"version":1,"data":{"amount":100}}`), map[string]string{
		"event_id":       "0d0f5a4e-7f38-4a53-9a3f-1b6f0c2d9e11",
		"event_type":     "cash_event_recorded",
		"aggregate_type": "cash_event",
		"aggregate_id":   " ce-1 ",
		"created_at":     created.Format(time.RFC3339Nano),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.EventID != "0d0f5a4e-7f38-4a53-9a3f-1b6f0c2d9e11" {
		t.Fatalf("expected attribute event id, got %q", env.EventID)
	}
	if !env.OccurredAt.Equal(created) {
		t.Fatalf("expected created_at fallback, got %v", env.OccurredAt)
	}
	if env.AggregateID != "ce-1" {
		t.Fatalf("expected trimmed aggregate id, got %q", env.AggregateID)
	}
	if string(env.Payload) != `{"amount":100}` {
		t.Fatalf("unexpected payload %s", env.Payload)
	}
	if _, err := env.DedupeID(); err != nil {
		t.Fatalf("dedupe id: %v", err)
	}
}

func TestDecodeMessageRejectsMissingRoutingFields(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"eventId":"x"}`), map[string]string{
		"event_type":     "cash_event_recorded",
		"aggregate_type": "cash_event",
	})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	env := Envelope{EventID: "not-a-uuid"}
	if _, err := env.DedupeID(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for bad id, got %v", err)
	}
}
