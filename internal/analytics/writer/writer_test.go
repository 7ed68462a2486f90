package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
)

func TestNewRequiresClientAndTable(t *testing.T) {
	if _, err := New(nil, Config{LedgerTable: "ledger_events"}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := newWriter(&scriptedInserter{}, Config{LedgerTable: " "}); err == nil {
		t.Fatal("expected error when ledger table missing")
	}
}

func TestInsertRetriesTransientFailures(t *testing.T) {
	w, fake, waits := newTestWriter(t, &googleapi.Error{Code: http.StatusServiceUnavailable}, nil)

	if err := w.InsertLedgerEvent(context.Background(), types.LedgerEventRow{EventID: "evt-1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected two attempts, got %d", fake.calls)
	}
	if len(*waits) != 1 || (*waits)[0] != defaultRetry.InitialBackoff {
		t.Fatalf("unexpected backoff %v", *waits)
	}
	if fake.table != "ledger_events" {
		t.Fatalf("unexpected table %q", fake.table)
	}
}

func TestInsertGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	w, fake, waits := newTestWriter(t, transient, transient, transient, transient)

	err := w.InsertLedgerEvent(context.Background(), types.LedgerEventRow{EventID: "evt-2"})
	if !errors.Is(err, transient) {
		t.Fatalf("expected wrapped quota error, got %v", err)
	}
	if fake.calls != defaultRetry.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultRetry.MaxAttempts, fake.calls)
	}
	if got := *waits; len(got) != 2 || got[1] != 2*defaultRetry.InitialBackoff {
		t.Fatalf("expected doubling backoff, got %v", got)
	}
}

func TestInsertStopsOnPermanentError(t *testing.T) {
	w, fake, _ := newTestWriter(t, &googleapi.Error{Code: http.StatusBadRequest})

	if err := w.InsertLedgerEvent(context.Background(), types.LedgerEventRow{EventID: "evt-3"}); err == nil {
		t.Fatal("expected permanent error to surface")
	}
	if fake.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", fake.calls)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"503":          {&googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		"400":          {&googleapi.Error{Code: http.StatusBadRequest}, false},
		"grpc":         {status.Error(codes.Unavailable, "down"), true},
		"grpc invalid": {status.Error(codes.InvalidArgument, "bad"), false},
		"plain":        {errors.New("boom"), false},
		"rows transient": {cbigquery.PutMultiError{
			{Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}},
		}, true},
		"rows mixed": {cbigquery.PutMultiError{
			{Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}},
			{Errors: cbigquery.MultiError{errors.New("no such field")}},
		}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := retryable(tc.err); got != tc.want {
				t.Fatalf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	if err != nil || !nj.Valid {
		t.Fatalf("expected valid json, got %+v (%v)", nj, err)
	}
	if nj, _ := EncodeJSON(nil); nj.Valid {
		t.Fatal("expected nil payload to be NULL")
	}
	raw := json.RawMessage(`{"foo":"baz"}`)
	if nj, _ := EncodeJSON(raw); nj.JSONVal != string(raw) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}
}

func TestEnsureLedgerTablePassesSchema(t *testing.T) {
	creator := &recordingCreator{}
	if err := EnsureLedgerTable(context.Background(), creator, "ledger_events"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if creator.table != "ledger_events" || creator.partition != "occurred_at" {
		t.Fatalf("unexpected call %+v", creator)
	}
	if len(creator.schema) != len(types.LedgerEventSchema) {
		t.Fatalf("expected ledger schema, got %d fields", len(creator.schema))
	}
}

func newTestWriter(t *testing.T, responses ...error) (*Writer, *scriptedInserter, *[]time.Duration) {
	t.Helper()
	fake := &scriptedInserter{responses: responses}
	w, err := newWriter(fake, Config{LedgerTable: "ledger_events"})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	waits := &[]time.Duration{}
	w.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return w, fake, waits
}

type scriptedInserter struct {
	responses []error
	calls     int
	table     string
}

func (s *scriptedInserter) InsertRows(_ context.Context, table string, rows []any) error {
	s.table = table
	s.calls++
	if len(rows) != 1 {
		return errors.New("expected one row per insert")
	}
	if s.calls <= len(s.responses) {
		return s.responses[s.calls-1]
	}
	return nil
}

type recordingCreator struct {
	table     string
	schema    cbigquery.Schema
	partition string
}

func (r *recordingCreator) EnsureTable(_ context.Context, table string, schema cbigquery.Schema, partition string) error {
	r.table, r.schema, r.partition = table, schema, partition
	return nil
}
