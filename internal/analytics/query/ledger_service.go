package query

import (
	"context"
	"errors"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

const (
	dailyAmountSQL = `
SELECT
  FORMAT_DATE('%%F', DATE_TRUNC(occurred_at, DAY)) AS day,
  SUM(COALESCE(%s, 0)) AS value
FROM %s
WHERE %s
  AND %s
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topCashVendorsSQL = `
SELECT vendor_id AS label, SUM(COALESCE(amount_cents, 0)) AS value
FROM %s
WHERE %s
  AND event_type = 'cash_event_recorded'
  AND cash_event_type = 'cash_collected'
  AND occurred_at BETWEEN @start AND @end
GROUP BY vendor_id
ORDER BY value DESC
LIMIT 10
`

	autoBlocksSQL = `
SELECT COUNT(*) AS value
FROM %s
WHERE %s
  AND event_type = 'vendor_blocked'
  AND automatic = TRUE
  AND occurred_at BETWEEN @start AND @end
`
)

// series is one daily KPI: the amount column summed per day for rows
// matching filter.
type series struct {
	column string
	filter string
}

var (
	cashCollectedSeries = series{"amount_cents", "event_type = 'cash_event_recorded' AND cash_event_type = 'cash_collected'"}
	settlementSeries    = series{"applied_cents", "event_type = 'settlement_approved'"}
	withdrawalSeries    = series{"amount_cents", "event_type = 'withdrawal_approved'"}
)

// LedgerService provides dashboard trends from the BigQuery ledger_events table.
type LedgerService interface {
	Query(ctx context.Context, req types.LedgerQueryRequest) (*types.LedgerQueryResponse, error)
}

// Querier runs parameterized BigQuery statements; *bigquery.Client
// satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

type ledgerService struct {
	client   Querier
	tableRef string
}

// NewLedgerService queries tableRef, a fully qualified reference such as
// the one returned by bigquery.Client.TableRef.
func NewLedgerService(client Querier, tableRef string) (LedgerService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if tableRef == "" {
		return nil, fmt.Errorf("table reference is required")
	}
	return &ledgerService{client: client, tableRef: tableRef}, nil
}

// Query runs the dashboard statements concurrently; the first failure
// cancels the rest.
func (s *ledgerService) Query(ctx context.Context, req types.LedgerQueryRequest) (*types.LedgerQueryResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	vendorClause := buildVendorClause(req)
	params := baseParams(req)

	var out types.LedgerQueryResponse
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range []struct {
		kpi  series
		dest *[]types.TimeSeriesPoint
	}{
		{cashCollectedSeries, &out.CashCollected},
		{settlementSeries, &out.SettlementsApproved},
		{withdrawalSeries, &out.WithdrawalsPaid},
	} {
		g.Go(func() error {
			points, err := collect(gctx, s.client, q.kpi.sql(s.tableRef, vendorClause), params, func(r pointRow) types.TimeSeriesPoint {
				return types.TimeSeriesPoint{Date: r.Day, Value: r.Value}
			})
			*q.dest = points
			return err
		})
	}
	g.Go(func() error {
		var err error
		out.TopCashVendors, err = collect(gctx, s.client, fmt.Sprintf(topCashVendorsSQL, s.tableRef, vendorClause), params, func(r labelRow) types.LabelValue {
			return types.LabelValue{Label: r.Label, Value: r.Value}
		})
		return err
	})
	g.Go(func() error {
		counts, err := collect(gctx, s.client, fmt.Sprintf(autoBlocksSQL, s.tableRef, vendorClause), params, func(r countRow) int64 {
			return r.Value
		})
		if len(counts) > 0 {
			out.AutoBlocks = counts[0]
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (k series) sql(table, vendorClause string) string {
	return fmt.Sprintf(dailyAmountSQL, k.column, table, vendorClause, k.filter)
}

func validateRequest(req types.LedgerQueryRequest) error {
	if req.VendorID != "" {
		if _, err := uuid.Parse(req.VendorID); err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "vendor id must be a uuid")
		}
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func buildVendorClause(req types.LedgerQueryRequest) string {
	if req.VendorID == "" {
		return "TRUE"
	}
	return "vendor_id = @vendorID"
}

func baseParams(req types.LedgerQueryRequest) []cloudbigquery.QueryParameter {
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}
	if req.VendorID != "" {
		params = append(params, cloudbigquery.QueryParameter{Name: "vendorID", Value: req.VendorID})
	}
	return params
}

type pointRow struct {
	Day   string `bigquery:"day"`
	Value int64  `bigquery:"value"`
}

type labelRow struct {
	Label string `bigquery:"label"`
	Value int64  `bigquery:"value"`
}

type countRow struct {
	Value int64 `bigquery:"value"`
}

// rowReader is the part of *bigquery.RowIterator that readRows needs.
type rowReader interface {
	Next(dst any) error
}

func collect[R, T any](ctx context.Context, q Querier, sql string, params []cloudbigquery.QueryParameter, convert func(R) T) ([]T, error) {
	iter, err := q.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("run ledger query: %w", err)
	}
	return readRows(iter, convert)
}

// readRows drains rows into a non-nil slice so empty KPIs encode as [].
func readRows[R, T any](rows rowReader, convert func(R) T) ([]T, error) {
	out := []T{}
	for {
		var row R
		err := rows.Next(&row)
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger row: %w", err)
		}
		out = append(out, convert(row))
	}
}
