package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorledger/api/responses"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	idempotentReplayHeader  = "Idempotent-Replay"
	originalRequestIDHeader = "X-Original-Request-Id"

	standardReplayWindow = 24 * time.Hour
	moneyReplayWindow    = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL = time.Minute
)

// replayWindows maps POST path globs to how long their outcome is replayable.
// Routes that move money keep their record for a week.
var replayWindows = []struct {
	glob   string
	window time.Duration
}{
	{"/api/v1/vendor/settlements", moneyReplayWindow},
	{"/api/v1/vendor/withdrawals", moneyReplayWindow},
	{"/api/internal/v1/cash-events", moneyReplayWindow},
	{"/api/admin/v1/settlements/*/approve", moneyReplayWindow},
	{"/api/admin/v1/settlements/*/reject", moneyReplayWindow},
	{"/api/admin/v1/withdrawals/*/approve", moneyReplayWindow},
	{"/api/admin/v1/withdrawals/*/reject", moneyReplayWindow},
	{"/api/admin/v1/vendors/*/cash-events", moneyReplayWindow},
	{"/api/admin/v1/vendors", standardReplayWindow},
	{"/api/admin/v1/vendors/*/cash-limit", standardReplayWindow},
	{"/api/admin/v1/vendors/*/block", standardReplayWindow},
	{"/api/admin/v1/vendors/*/unblock", standardReplayWindow},
	{"/api/admin/v1/vendors/*/reconcile", standardReplayWindow},
	{"/api/admin/v1/outbox/dlq/*/replay", standardReplayWindow},
	{"/api/v1/vendor/notifications/*/read", standardReplayWindow},
	{"/api/v1/vendor/notifications/read-all", standardReplayWindow},
}

// ResponseStore holds in-flight markers and recorded responses.
type ResponseStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// recorded is what a key holds: either an in-flight marker (Status 0) or the
// finished response.
type recorded struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
	RequestID   string `json:"request_id,omitempty"`
}

func (r recorded) inFlight() bool { return r.Status == 0 }

// Idempotency makes the listed POST routes safe to retry. The first request
// under a key claims it; a concurrent duplicate gets a 409 until the first
// finishes, after which duplicates replay the stored response. A different
// body under the same key is rejected. 5xx responses and responses carrying
// Retry-After release the key so the caller can try again.
func Idempotency(store ResponseStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window, ok := replayWindow(r.Method, requestPath(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(scopeOf(r), clientKey)
			claim := recorded{RequestHash: fingerprint(body), RequestID: RequestIDFromContext(ctx)}
			marker, _ := json.Marshal(claim)

			won, err := store.SetNX(ctx, key, string(marker), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !won {
				replayOrReject(ctx, w, store, key, claim.RequestHash, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError || capture.Header().Get("Retry-After") != "" {
				if err := store.Del(context.WithoutCancel(ctx), key); err != nil && logg != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			claim.Status = status
			claim.ContentType = capture.Header().Get("Content-Type")
			claim.Body = capture.body.Bytes()
			payload, _ := json.Marshal(claim)
			if err := store.Set(context.WithoutCancel(ctx), key, string(payload), window); err != nil && logg != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func replayOrReject(ctx context.Context, w http.ResponseWriter, store ResponseStore, key, hash string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The holder released between our claim attempt and this read.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConcurrency, "request with this key was retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}
	var prior recorded
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case prior.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case prior.inFlight():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
	default:
		replay(w, prior)
	}
}

func replay(w http.ResponseWriter, prior recorded) {
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set(idempotentReplayHeader, "true")
	if prior.RequestID != "" {
		w.Header().Set(originalRequestIDHeader, prior.RequestID)
	}
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
}

// scopeOf keeps keys from colliding across callers and routes.
func scopeOf(r *http.Request) string {
	vendorID, _ := VendorIDFromContext(r.Context())
	return strings.Join([]string{
		ActorIDFromContext(r.Context()).String(),
		vendorID.String(),
		r.Method,
		r.URL.Path,
	}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// requestPath prefers the matched chi pattern. Inside a mounted group the
// pattern is still partial ("/api/v1/vendor/*") until routing completes, so
// the concrete path is used instead.
func requestPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "/*") {
			return pattern
		}
	}
	return r.URL.Path
}

func replayWindow(method, route string) (time.Duration, bool) {
	if method != http.MethodPost || route == "" {
		return 0, false
	}
	route = strings.TrimSuffix(route, "/")
	for _, rw := range replayWindows {
		if ok, _ := path.Match(rw.glob, route); ok {
			return rw.window, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
