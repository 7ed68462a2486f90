package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/vendorledger/internal/analytics/router"
	"github.com/angelmondragon/vendorledger/internal/analytics/worker"
	"github.com/angelmondragon/vendorledger/internal/analytics/writer"
	"github.com/angelmondragon/vendorledger/internal/bootstrap"
	"github.com/angelmondragon/vendorledger/pkg/outbox/idempotency"
)

// analytics-worker mirrors the ledger topic into BigQuery.
func main() {
	proc := bootstrap.Start("analytics-worker")
	ctx := context.Background()
	cfg := proc.Config

	redisClient := proc.Redis(ctx)
	pubsubClient := proc.PubSub(ctx)
	bqClient := proc.BigQuery(ctx)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		proc.Must("analytics subscription", errors.New("VENDORLEDGER_PUBSUB_ANALYTICS_SUBSCRIPTION is not configured"))
	}

	dedupe, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	proc.Must("idempotency manager", err)

	if cfg.BigQuery.CreateTables {
		proc.Must("ledger table", writer.EnsureLedgerTable(ctx, bqClient, bqClient.LedgerTable()))
	}
	rows, err := writer.New(bqClient, writer.Config{LedgerTable: cfg.BigQuery.LedgerEventsTable})
	proc.Must("bigquery writer", err)

	handler, err := router.NewRouter(rows, proc.Logger, nil)
	proc.Must("analytics router", err)

	service, err := worker.NewService(subscription, handler, dedupe, proc.Logger)
	proc.Must("analytics worker", err)

	proc.ServeMetrics()
	proc.Run(service.Run)
}
