package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/vendorledger/internal/bookings"
	"github.com/angelmondragon/vendorledger/internal/bootstrap"
	"github.com/angelmondragon/vendorledger/internal/cashevents"
	"github.com/angelmondragon/vendorledger/internal/notifications"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/idempotency"
)

func main() {
	proc := bootstrap.Start("worker")
	ctx := context.Background()
	logg := proc.Logger

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)
	pubsubClient := proc.PubSub(ctx)

	dedupe, err := idempotency.NewManager(redisClient, proc.Config.Eventing.OutboxIdempotencyTTL)
	proc.Must("idempotency manager", err)

	conn := dbClient.DB()
	cashEvents, err := cashevents.NewService(
		cashevents.NewRepository(conn),
		vendors.NewRepository(conn),
		dbClient,
		outbox.NewService(outbox.NewRepository(conn), logg),
		metrics.NewLedgerMetrics(proc.Metrics()),
		logg,
	)
	proc.Must("cash event service", err)

	bookingSub := pubsubClient.BookingsSubscription()
	if bookingSub == nil {
		proc.Must("bookings subscription", errors.New("VENDORLEDGER_PUBSUB_BOOKINGS_SUBSCRIPTION is not configured"))
	}
	bookingConsumer, err := bookings.NewConsumer(cashEvents, bookingSub, dedupe, logg)
	proc.Must("booking consumer", err)

	notificationSub := pubsubClient.NotificationSubscription()
	if notificationSub == nil {
		proc.Must("notification subscription", errors.New("VENDORLEDGER_PUBSUB_NOTIFICATION_SUBSCRIPTION is not configured"))
	}
	notificationConsumer, err := notifications.NewConsumer(notifications.NewRepository(conn), notificationSub, dedupe, logg)
	proc.Must("notification consumer", err)

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: []Dependency{
			{Name: "database", Check: dbClient},
			{Name: "redis", Check: redisClient},
			{Name: "pubsub", Check: pubsubClient},
		},
		Consumers: []Consumer{
			{Name: "bookings", Runner: bookingConsumer},
			{Name: "notifications", Runner: notificationConsumer},
		},
	})
	proc.Must("worker service", err)

	proc.ServeMetrics()
	proc.Run(service.Run)
}
