package main

import (
	"context"
	"errors"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/outbox/registry"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// publisherFactory returns the publisher for a topic, or nil when the topic
// is not configured.
type publisherFactory func(topic string) publisher

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// orderedPublishers hands out one ordering-enabled publisher per topic so
// events for the same vendor reach subscribers in ledger order.
func orderedPublishers(source topicSource) publisherFactory {
	var mu sync.Mutex
	cache := map[string]publisher{}
	return func(topic string) publisher {
		mu.Lock()
		defer mu.Unlock()
		if pub, ok := cache[topic]; ok {
			return pub
		}
		raw := source.Publisher(topic)
		if raw == nil {
			return nil
		}
		raw.EnableMessageOrdering = true
		pub := &gcpPublisher{raw: raw}
		cache[topic] = pub
		return pub
	}
}

// ledgerMessage carries the stored envelope unchanged. Attributes let
// subscribers filter without decoding; the ordering key is the vendor when
// the actor is one, otherwise the aggregate.
func ledgerMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	orderingKey := event.AggregateID.String()
	if actor := resolved.Envelope.Actor; actor != nil && actor.VendorID != nil {
		attrs["vendor_id"] = actor.VendorID.String()
		orderingKey = attrs["vendor_id"]
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: orderingKey,
	}
}

type gcpPublisher struct {
	raw *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpResult{
		result:      p.raw.Publish(ctx, msg),
		orderingKey: msg.OrderingKey,
		resume:      p.raw.ResumePublish,
	}
}

// gcpResult resumes the ordering key after a failure; the client pauses a
// key on error until told otherwise.
type gcpResult struct {
	result      *gcppubsub.PublishResult
	orderingKey string
	resume      func(string)
}

func (r *gcpResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.result.Get(ctx)
	if err != nil && r.orderingKey != "" {
		r.resume(r.orderingKey)
	}
	return id, err
}
