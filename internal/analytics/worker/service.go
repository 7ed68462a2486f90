package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/internal/analytics/router"
	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const consumerName = "analytics-worker"

// Handler turns one ledger envelope into analytics rows.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	return fn(ctx, envelope)
}

type dedupe interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// Service mirrors the ledger topic into analytics storage. Each event is
// written at most once per event id; failed writes release the marker and
// nack so Pub/Sub redelivers.
type Service struct {
	subscription receiver
	handler      Handler
	dedupe       dedupe
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager dedupe, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	return newService(subscription, handler, manager, logg)
}

func newService(subscription receiver, handler Handler, manager dedupe, logg *logger.Logger) (*Service, error) {
	switch {
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case manager == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		dedupe:       manager,
		logg:         logg,
	}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.consume(ctx, msg.ID, msg.Data, msg.Attributes) == redeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type disposition int

const (
	done disposition = iota
	redeliver
)

func (s *Service) consume(ctx context.Context, messageID string, data []byte, attrs map[string]string) disposition {
	ctx = s.logg.WithField(ctx, "message_id", messageID)

	env, err := types.DecodeMessage(data, attrs)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.message_dropped")
		return done
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     env.EventID,
		"event_type":   env.EventType,
		"aggregate_id": env.AggregateID,
	})

	eventID, err := env.DedupeID()
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.message_dropped")
		return done
	}

	seen, err := s.dedupe.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "analytics.dedupe_failed", err)
		return redeliver
	}
	if seen {
		s.logg.Debug(ctx, "analytics.duplicate")
		return done
	}

	err = s.handler.Handle(ctx, env)
	switch {
	case err == nil:
		s.logg.Debug(ctx, "analytics.recorded")
		return done
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Debug(ctx, "analytics.event_ignored")
		return done
	case errors.Is(err, types.ErrMalformed):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.message_dropped")
		return done
	}

	s.logg.Error(ctx, "analytics.record_failed", err)
	if delErr := s.dedupe.Delete(ctx, consumerName, eventID); delErr != nil {
		s.logg.Error(ctx, "analytics.dedupe_release_failed", delErr)
	}
	return redeliver
}
