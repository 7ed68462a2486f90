package main

import (
	"context"

	"github.com/angelmondragon/vendorledger/internal/bootstrap"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	ctx := context.Background()

	dbClient := proc.Database(ctx)
	pubsubClient := proc.PubSub(ctx)

	events, err := registry.NewEventRegistry(proc.Config.PubSub)
	proc.Must("event registry", err)

	service, err := NewService(ServiceParams{
		Settings:   SettingsFrom(proc.Config.Outbox),
		Logger:     proc.Logger,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   events,
		DLQ:        outbox.NewDLQRepository(dbClient.DB()),
		Metrics:    metrics.NewOutboxMetrics(proc.Metrics()),
	})
	proc.Must("outbox publisher", err)

	proc.ServeMetrics()
	proc.Run(service.Run)
}
