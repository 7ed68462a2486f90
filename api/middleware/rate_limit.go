package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/vendorledger/api/responses"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// WindowCounter counts one hit against scope and reports whether the
// current fixed window is still within limit.
type WindowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one traffic surface per client IP and, when the
// caller is a vendor, per vendor. A zero limit disables that dimension.
type RateLimitPolicy struct {
	name        string
	window      time.Duration
	ipLimit     int
	vendorLimit int
}

func NewRateLimitPolicy(name string, window time.Duration, ipLimit, vendorLimit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	return RateLimitPolicy{name: name, window: window, ipLimit: ipLimit, vendorLimit: vendorLimit}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.vendorLimit > 0)
}

// quota is one counter a request is charged against.
type quota struct {
	dimension string
	subject   string
	limit     int
}

func (q quota) scope(policy string) string {
	return policy + ":" + q.dimension + ":" + q.subject
}

func (p RateLimitPolicy) quotas(r *http.Request) []quota {
	var out []quota
	if p.ipLimit > 0 {
		if ip := clientIP(r); ip != "" {
			out = append(out, quota{"ip", ip, p.ipLimit})
		}
	}
	if p.vendorLimit > 0 {
		if vendorID, ok := VendorIDFromContext(r.Context()); ok {
			out = append(out, quota{"vendor", vendorID.String(), p.vendorLimit})
		}
	}
	return out
}

// RateLimit charges every applicable quota in order and rejects with 429 and
// Retry-After at the first one over its limit. Counter failures answer 503.
func RateLimit(policy RateLimitPolicy, counter WindowCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || counter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, q := range policy.quotas(r) {
				allowed, hits, err := counter.FixedWindowAllow(ctx, q.scope(policy.name), int64(q.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectOverQuota(ctx, logg, w, policy, q, hits)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectOverQuota(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, q quota, hits int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    policy.name,
			"dimension": q.dimension,
			"subject":   q.subject,
			"hits":      hits,
			"limit":     q.limit,
		}), "rate_limit.blocked")
	}
	// the window start is not tracked, so the whole window is the upper bound
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(policy.window.Seconds()))))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// clientIP prefers the first valid X-Forwarded-For hop, then X-Real-IP, then
// the socket peer.
func clientIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(hop)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
