package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	ErrNotConfigured = errors.New("bigquery client not configured")
	ErrTableMissing  = errors.New("bigquery table does not exist")
)

// Client is the ledger's handle on one BigQuery dataset. The ledger events
// table is checked at startup unless the process is allowed to create it.
type Client struct {
	sdk         *bigquery.Client
	dataset     *bigquery.Dataset
	project     string
	ledgerTable string
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.LedgerEventsTable)
	switch {
	case project == "":
		return nil, errors.New("gcp project id is required")
	case datasetID == "":
		return nil, errors.New("bigquery dataset is required")
	case table == "":
		return nil, errors.New("bigquery ledger table is required")
	}

	sdk, err := bigquery.NewClient(ctx, project, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		sdk:         sdk,
		dataset:     sdk.Dataset(datasetID),
		project:     project,
		ledgerTable: table,
	}

	check := c.Ping
	if cfg.CreateTables {
		check = c.pingDataset
	}
	if err := check(ctx); err != nil {
		_ = sdk.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"table":   table,
		}), "bigquery.ready")
	}
	return c, nil
}

func (c *Client) pingDataset(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("reading dataset %q: %w", c.dataset.DatasetID, err)
	}
	return nil
}

// Ping checks that the dataset and ledger table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pingDataset(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Table(c.ledgerTable).Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrTableMissing, c.ledgerTable)
		}
		return fmt.Errorf("reading table %q: %w", c.ledgerTable, err)
	}
	return nil
}

// EnsureTable creates table with the given schema, day-partitioned on
// partitionField, when it does not exist yet. Existing tables are left
// untouched.
func (c *Client) EnsureTable(ctx context.Context, table string, schema bigquery.Schema, partitionField string) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	ref := c.dataset.Table(table)
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	_, err := ref.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("reading table %q: %w", table, err)
	}

	meta := &bigquery.TableMetadata{Schema: schema}
	if partitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: partitionField,
		}
	}
	if err := ref.Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("creating table %q: %w", table, err)
	}
	return nil
}

// InsertRows streams rows into table.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(table) == "" {
		return errors.New("bigquery table name is required")
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(strings.TrimSpace(table)).Inserter().Put(ctx, rows)
}

// Query runs a parameterized statement.
func (c *Client) Query(ctx context.Context, sql string, params []bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	if c == nil || c.sdk == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(sql) == "" {
		return nil, errors.New("sql query is required")
	}
	q := c.sdk.Query(sql)
	q.Parameters = params
	return q.Read(ctx)
}

// LedgerTable is the configured ledger events table name.
func (c *Client) LedgerTable() string {
	if c == nil {
		return ""
	}
	return c.ledgerTable
}

// TableRef renders a fully qualified, backtick-quoted table reference for
// use in standard SQL.
func (c *Client) TableRef(table string) string {
	if c == nil || c.dataset == nil {
		return ""
	}
	return fmt.Sprintf("`%s.%s.%s`", c.project, c.dataset.DatasetID, table)
}

func (c *Client) Close() error {
	if c == nil || c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

func isNotFound(err error) bool {
	return apiStatus(err) == http.StatusNotFound
}

func isConflict(err error) bool {
	return apiStatus(err) == http.StatusConflict
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
