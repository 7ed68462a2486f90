package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 55 * time.Minute

// ErrLockLost means the lock expired mid-cycle and may now belong to another
// replica.
var ErrLockLost = errors.New("cron lock lost")

// Lock makes a maintenance cycle exclusive across cron worker replicas.
// Extend refreshes the lease of a held lock and reports false once it is gone.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Extend(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ExtendIfHeld(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseIfHeld(ctx context.Context, key, token string) (bool, error)
}

// RedisLock stores a per-acquire token under key, so a replica whose lease
// expired can neither extend nor release the lock of the next holder.
type RedisLock struct {
	store    lockStore
	key      string
	ttl      time.Duration
	token    string
	newToken func() string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("lock store required")
	}
	if key == "" {
		return nil, errors.New("lock key required")
	}
	return &RedisLock{store: store, key: key, ttl: orDefault(ttl, defaultLockTTL), newToken: uuid.NewString}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.newToken()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if won {
		l.token = token
	}
	return won, nil
}

func (l *RedisLock) Extend(ctx context.Context) (bool, error) {
	if l.token == "" {
		return false, nil
	}
	held, err := l.store.ExtendIfHeld(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", l.key, err)
	}
	if !held {
		l.token = ""
	}
	return held, nil
}

// Release drops the lock only while this worker still holds it.
func (l *RedisLock) Release(ctx context.Context) error {
	token := l.token
	if token == "" {
		return nil
	}
	l.token = ""
	if _, err := l.store.ReleaseIfHeld(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
