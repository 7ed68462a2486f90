package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox/registry"
)

// Settings tunes the relay loop. Zero values fall back to defaults.
type Settings struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
}

const (
	defaultBatchSize      = 50
	defaultMaxAttempts    = 10
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
)

func SettingsFrom(cfg config.OutboxConfig) Settings {
	return Settings{
		BatchSize:    cfg.BatchSize,
		MaxAttempts:  cfg.MaxAttempts,
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.BatchSize <= 0 {
		s.BatchSize = defaultBatchSize
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = defaultMaxAttempts
	}
	if s.PollInterval <= 0 {
		s.PollInterval = defaultPollInterval
	}
	if s.PublishTimeout <= 0 {
		s.PublishTimeout = defaultPublishTimeout
	}
	return s
}

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	topicSource
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Settings   Settings
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	Registry   registryResolver
	DLQ        dlqRepository
	Publishers publisherFactory
	Metrics    *metrics.OutboxMetrics
}

// Service relays committed outbox rows to Pub/Sub. Rows are claimed with
// SKIP LOCKED inside one transaction per batch, so several publishers can
// run side by side.
type Service struct {
	settings   Settings
	logg       *logger.Logger
	db         dbClient
	pubsub     pubSubClient
	repo       outboxRepository
	registry   registryResolver
	dlq        dlqRepository
	publishers publisherFactory
	metrics    *metrics.OutboxMetrics
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	}

	publishers := params.Publishers
	if publishers == nil {
		publishers = orderedPublishers(params.PubSub)
	}

	return &Service{
		settings:   params.Settings.withDefaults(),
		logg:       params.Logger,
		db:         params.DB,
		pubsub:     params.PubSub,
		repo:       params.Repository,
		registry:   params.Registry,
		dlq:        params.DLQ,
		publishers: publishers,
		metrics:    params.Metrics,
		now:        time.Now,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	delay := newBackoff(s.settings.PollInterval, maxBackoff)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = delay.fail()
		case stats.total() > 0:
			s.logBatch(ctx, stats)
			delay.succeed()
			continue
		default:
			wait = delay.succeed()
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

type batchStats struct {
	published int
	retried   int
	parked    int
}

func (b batchStats) total() int {
	return b.published + b.retried + b.parked
}

func (s *Service) logBatch(ctx context.Context, stats batchStats) {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"published": stats.published,
		"retried":   stats.retried,
		"parked":    stats.parked,
	}), "outbox.batch_relayed")
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetried
	outcomeParked
)

func (o outcome) String() string {
	switch o {
	case outcomePublished:
		return "published"
	case outcomeRetried:
		return "retried"
	case outcomeParked:
		return "parked"
	}
	return "unknown"
}

func (s *Service) processBatch(ctx context.Context) (stats batchStats, err error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveBatch(stats.total(), s.now().Sub(start), err)
	}()

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.settings.BatchSize, s.settings.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		for _, event := range events {
			result, err := s.handle(ctx, tx, event)
			if err != nil {
				return err
			}
			s.metrics.IncRelayed(string(event.EventType), result.String())
			switch result {
			case outcomePublished:
				stats.published++
			case outcomeRetried:
				stats.retried++
			case outcomeParked:
				stats.parked++
			}
		}
		return nil
	})
	if err != nil {
		return batchStats{}, err
	}
	return stats, nil
}

// handle publishes one row and records what happened to it. The returned
// error is reserved for bookkeeping failures that must abort the batch.
func (s *Service) handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	})

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeParked, s.park(ctx, tx, event, enums.OutboxDLQReasonUndecodable, err)
	}

	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return 0, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Debug(ctx, "outbox.published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return outcomeParked, s.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if event.AttemptCount+1 >= s.settings.MaxAttempts {
		return outcomeParked, s.park(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("giving up after %d attempts: %w", event.AttemptCount+1, pubErr))
	}

	s.logg.Warn(s.logg.WithField(ctx, "error", pubErr.Error()), "outbox.publish_retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return 0, fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return outcomeRetried, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.settings.PublishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, ledgerMessage(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %q returned no publish result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// park copies the row into the dead letter table and retires it from the
// relay.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox.parked")

	entry := event.DeadLetter(reason, cause, s.now())
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.settings.MaxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
