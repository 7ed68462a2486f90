package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorledger/internal/analytics/query"
	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/bigquery"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// Service answers the admin dashboard's ledger KPI queries.
type Service interface {
	Query(ctx context.Context, req types.LedgerQueryRequest) (*types.LedgerQueryResponse, error)
}

// Cache stores rendered responses; a redis miss is reported as goredis.Nil.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CounterKey(name string) string
}

const defaultCacheTTL = 5 * time.Minute

type service struct {
	ledger query.LedgerService
	cache  Cache
	ttl    time.Duration
	logg   *logger.Logger
}

// NewService queries the ledger events table behind client. A nil cache
// disables response caching.
func NewService(client *bigquery.Client, cache Cache, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	ledger, err := query.NewLedgerService(client, client.TableRef(client.LedgerTable()))
	if err != nil {
		return nil, err
	}
	return newService(ledger, cache, ttl, logg), nil
}

func newService(ledger query.LedgerService, cache Cache, ttl time.Duration, logg *logger.Logger) *service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &service{ledger: ledger, cache: cache, ttl: ttl, logg: logg}
}

// Query serves from cache when possible. Cache failures degrade to a direct
// query rather than failing the request.
func (s *service) Query(ctx context.Context, req types.LedgerQueryRequest) (*types.LedgerQueryResponse, error) {
	if s.cache == nil {
		return s.ledger.Query(ctx, req)
	}

	key := s.cache.CounterKey("analytics:" + cacheKey(req))
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached types.LedgerQueryResponse
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return &cached, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		s.warn(ctx, "analytics.cache_read_failed", err)
	}

	resp, err := s.ledger.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.ttl); err != nil {
			s.warn(ctx, "analytics.cache_write_failed", err)
		}
	}
	return resp, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

// cacheKey buckets the window by minute so repeated dashboard loads share an
// entry.
func cacheKey(req types.LedgerQueryRequest) string {
	raw := fmt.Sprintf("%s|%d|%d",
		req.VendorID,
		req.Start.UTC().Truncate(time.Minute).Unix(),
		req.End.UTC().Truncate(time.Minute).Unix(),
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:12])
}
