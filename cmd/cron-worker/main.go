package main

import (
	"context"
	"flag"
	"strings"

	"github.com/angelmondragon/vendorledger/internal/balances"
	"github.com/angelmondragon/vendorledger/internal/bootstrap"
	"github.com/angelmondragon/vendorledger/internal/cron"
	"github.com/angelmondragon/vendorledger/internal/notifications"
	"github.com/angelmondragon/vendorledger/internal/settlements"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma separated job names; empty runs every job")
	flag.Parse()

	proc := bootstrap.Start("cron-worker")
	ctx := context.Background()
	cfg := proc.Config

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	proc.Must("cron lock", err)

	registry, err := buildRegistry(cfg, proc.Logger, dbClient, metrics.NewLedgerMetrics(proc.Metrics()))
	proc.Must("cron jobs", err)
	registry, err = registry.Select(splitJobs(*only)...)
	proc.Must("cron job selection", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     proc.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronMetrics(proc.Metrics()),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	proc.Must("cron service", err)

	if *once {
		proc.Run(func(ctx context.Context) error {
			cycle, err := service.RunOnce(ctx)
			if err != nil {
				return err
			}
			return cycle.Err()
		})
		return
	}
	proc.ServeMetrics()
	proc.Run(service.Run)
}

func splitJobs(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, ledgerMetrics *metrics.LedgerMetrics) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	vendorRepo := vendors.NewRepository(conn)

	balanceSvc, err := balances.NewService(vendorRepo, balances.NewHistoryRepository(conn), dbClient, emitter, ledgerMetrics, logg)
	if err != nil {
		return nil, err
	}
	settlementSvc, err := settlements.NewService(settlements.NewRepository(conn), vendorRepo, dbClient, emitter, ledgerMetrics, logg)
	if err != nil {
		return nil, err
	}

	notificationJob, err := cron.NotificationCleanup(logg, notifications.NewRepository(conn), cfg.Cron.NotificationRetention)
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.OutboxRetention(logg, outboxRepo, cfg.Cron.OutboxRetention)
	if err != nil {
		return nil, err
	}
	dlqJob, err := cron.DeadLetterRetention(logg, outbox.NewDLQRepository(conn), cfg.Cron.DeadLetterRetention)
	if err != nil {
		return nil, err
	}
	reconcileJob, err := cron.NewBalanceReconcileJob(cron.BalanceReconcileJobParams{
		Logger:   logg,
		Vendors:  vendorRepo,
		Balances: balanceSvc,
		Repair:   cfg.Ledger.ReconcileRepair,
	})
	if err != nil {
		return nil, err
	}
	staleJob, err := cron.NewStaleSettlementsJob(cron.StaleSettlementsJobParams{
		Logger:      logg,
		Settlements: settlementSvc,
		OlderThan:   cfg.Ledger.StaleSettlementAge,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(notificationJob, retentionJob, dlqJob, reconcileJob, staleJob)
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
