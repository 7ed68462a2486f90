package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/vendorledger/api/controllers"
	"github.com/angelmondragon/vendorledger/api/routes"
	"github.com/angelmondragon/vendorledger/internal/analytics"
	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/internal/bootstrap"
	"github.com/angelmondragon/vendorledger/internal/cashevents"
	"github.com/angelmondragon/vendorledger/internal/creditguard"
	"github.com/angelmondragon/vendorledger/internal/notifications"
	"github.com/angelmondragon/vendorledger/internal/reporting"
	"github.com/angelmondragon/vendorledger/internal/settlements"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/internal/withdrawals"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("api")
	ctx := context.Background()
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	registry := proc.Metrics()
	services, err := buildServices(cfg, logg, dbClient, metrics.NewLedgerMetrics(registry))
	proc.Must("services", err)

	readiness := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}
	if cfg.FeatureFlags.AnalyticsQuery {
		bqClient := proc.BigQuery(ctx)
		services.Analytics, err = analytics.NewService(bqClient, redisClient, cfg.BigQuery.QueryCacheTTL, logg)
		proc.Must("analytics service", err)
		readiness["bigquery"] = bqClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(cfg, logg, redisClient, readiness, registry, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	proc.Run(func(ctx context.Context) error {
		return serve(ctx, server)
	})
}

// serve runs the server until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

const shutdownGrace = 20 * time.Second

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, m *metrics.LedgerMetrics) (routes.Services, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	vendorRepo := vendors.NewRepository(conn)

	vendorSvc, err := vendors.NewService(vendorRepo, cfg.Ledger.DefaultCashLimitCents)
	if err != nil {
		return routes.Services{}, err
	}
	balanceSvc, err := balances.NewService(vendorRepo, balances.NewHistoryRepository(conn), dbClient, emitter, m, logg)
	if err != nil {
		return routes.Services{}, err
	}
	cashSvc, err := cashevents.NewService(cashevents.NewRepository(conn), vendorRepo, dbClient, emitter, m, logg)
	if err != nil {
		return routes.Services{}, err
	}
	guardSvc, err := creditguard.NewService(vendorRepo, dbClient, emitter, m, logg)
	if err != nil {
		return routes.Services{}, err
	}
	settlementSvc, err := settlements.NewService(settlements.NewRepository(conn), vendorRepo, dbClient, emitter, m, logg)
	if err != nil {
		return routes.Services{}, err
	}
	withdrawalSvc, err := withdrawals.NewService(withdrawals.NewRepository(conn), vendorRepo, dbClient, emitter, m, logg)
	if err != nil {
		return routes.Services{}, err
	}
	reportingSvc, err := reporting.NewService(reporting.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	notificationSvc, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Vendors:       vendorSvc,
		Balances:      balanceSvc,
		CashEvents:    cashSvc,
		CreditGuard:   guardSvc,
		Settlements:   settlementSvc,
		Withdrawals:   withdrawalSvc,
		Reporting:     reportingSvc,
		Notifications: notificationSvc,
		DeadLetters:   outbox.NewDLQRepository(conn),
	}, nil
}
