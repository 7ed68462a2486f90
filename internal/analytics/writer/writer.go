package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/vendorledger/pkg/bigquery"
)

// RetryPolicy bounds how long a transient insert failure is retried before
// the message is handed back to Pub/Sub.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

var defaultRetry = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 250 * time.Millisecond,
	MaximumBackoff: 2 * time.Second,
}

type Config struct {
	LedgerTable string
	Retry       RetryPolicy
}

type inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type tableCreator interface {
	EnsureTable(ctx context.Context, table string, schema cbigquery.Schema, partitionField string) error
}

// Writer streams ledger rows into BigQuery, one insert per event. Rows are
// written before the message is acked, so nothing is buffered in memory.
type Writer struct {
	client inserter
	table  string
	retry  RetryPolicy
	sleep  func(context.Context, time.Duration) error
}

func New(client *pkgbigquery.Client, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client inserter, cfg Config) (*Writer, error) {
	table := strings.TrimSpace(cfg.LedgerTable)
	if table == "" {
		return nil, errors.New("ledger table is required")
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultRetry.MaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultRetry.InitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultRetry.MaximumBackoff
	}
	retry.MaximumBackoff = max(retry.MaximumBackoff, retry.InitialBackoff)
	return &Writer{client: client, table: table, retry: retry, sleep: sleepCtx}, nil
}

// EnsureLedgerTable creates the ledger events table when it is missing.
func EnsureLedgerTable(ctx context.Context, client tableCreator, table string) error {
	return client.EnsureTable(ctx, table, types.LedgerEventSchema, types.LedgerEventPartitionField)
}

func (w *Writer) InsertLedgerEvent(ctx context.Context, row types.LedgerEventRow) error {
	rows := []any{&row}
	delay := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !retryable(err) {
			return fmt.Errorf("insert %s into %s after %d attempt(s): %w", row.EventID, w.table, attempt, err)
		}
		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, w.retry.MaximumBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether every underlying failure is transient. Row level
// errors from streaming inserts count only when all of them are.
func retryable(err error) bool {
	var rowsErr cbigquery.PutMultiError
	if errors.As(err, &rowsErr) {
		if len(rowsErr) == 0 {
			return false
		}
		for _, rowErr := range rowsErr {
			if !retryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !retryable(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

// EncodeJSON renders a payload for the JSON payload column. Raw JSON is
// passed through untouched.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
