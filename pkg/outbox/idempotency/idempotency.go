// Package idempotency deduplicates Pub/Sub deliveries of ledger events per consumer.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/redis"
)

// DefaultTTL outlives the Pub/Sub retention window for the ledger subscriptions.
const DefaultTTL = 30 * 24 * time.Hour

var consumerNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Manager writes a processed marker per (consumer, event id) with SETNX.
// The marker value is the time the event was first claimed. Keys look like
// vl:idempotency:evt:processed:<consumer>:<event_id>.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a Manager. A zero ttl selects DefaultTTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case ttl == 0:
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It reports true when an
// earlier delivery already claimed it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimedAt := m.now().UTC().Format(time.RFC3339Nano)
	won, err := m.store.SetNX(ctx, key, claimedAt, m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s for %s: %w", eventID, consumer, err)
	}
	return !won, nil
}

// Delete drops the claim so a redelivery of a failed event is processed again.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	if err := m.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release %s for %s: %w", eventID, consumer, err)
	}
	return nil
}

// ProcessedAt returns when eventID was first claimed for consumer, or false
// when no live claim exists.
func (m *Manager) ProcessedAt(ctx context.Context, consumer string, eventID uuid.UUID) (time.Time, bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return time.Time{}, false, err
	}
	raw, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("lookup %s for %s: %w", eventID, consumer, err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt claim marker %q: %w", raw, err)
	}
	return at, true, nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if !consumerNameRe.MatchString(consumer) {
		return "", fmt.Errorf("invalid consumer name %q", consumer)
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
