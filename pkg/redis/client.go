// Package redis wraps go-redis with the handful of primitives the ledger
// needs: idempotency records, fixed-window counters, cached query results and
// single-holder job locks.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// ErrNotConnected is returned by every call on a zero Client.
var ErrNotConnected = errors.New("redis: client not connected")

// Nil aliases the go-redis miss sentinel so callers need not import it.
var Nil = redis.Nil

type store interface {
	redis.Scripter
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyStore is the subset used to record and replay request outcomes.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
}

type Client struct {
	Keyspace
	store  store
	closer func() error
}

// New dials redis from cfg and fails unless the server answers PING.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"addr":      opts.Addr,
			"db":        opts.DB,
			"pool_size": opts.PoolSize,
		}), "redis.connected")
	}
	return &Client{Keyspace: DefaultKeyspace, store: raw, closer: raw.Close}, nil
}

// options prefers the URL and lets explicit pool settings fill what it omits.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}
	opts.DB = max(opts.DB, cfg.DB)
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return ErrNotConnected
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns Nil when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", ErrNotConnected
	}
	return c.store.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, ErrNotConnected
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// IncrWithTTL bumps a window counter. The expiry is attached with EXPIRE NX on
// every call so a counter whose first EXPIRE was lost still ages out.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, ErrNotConnected
	}
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 {
		if err := c.store.ExpireNX(ctx, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

// FixedWindowAllow counts one hit against scope and reports whether the
// window is still under limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimit(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseIfHeld deletes key when its value equals token, in one round trip.
func (c *Client) ReleaseIfHeld(ctx context.Context, key, token string) (bool, error) {
	if c.store == nil {
		return false, ErrNotConnected
	}
	n, err := releaseScript.Run(ctx, c.store, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// extendScript resets the TTL of KEYS[1] to ARGV[2] ms while it holds ARGV[1].
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ExtendIfHeld pushes key's expiry to ttl from now when its value equals token.
func (c *Client) ExtendIfHeld(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, ErrNotConnected
	}
	n, err := extendScript.Run(ctx, c.store, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return ErrNotConnected
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return ErrNotConnected
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) IdempotencyKey(scope, id string) string { return c.Idempotency(scope, id) }

func (c *Client) CounterKey(name string) string { return c.Counter(name) }

func (c *Client) LockKey(name string) string { return c.Lock(name) }
