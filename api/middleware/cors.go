package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/vendorledger/pkg/config"
)

const corsPreflightCache = 5 * time.Minute

var devConsoleOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// CORS applies the console origin policy. Origins may use a single "*"
// wildcard such as https://*.vendorledger.app. Outside dev an empty list
// sends no CORS headers at all, so browsers refuse cross-origin calls.
func CORS(app config.AppConfig) func(http.Handler) http.Handler {
	origins := app.CORSOrigins
	if app.IsDev() {
		origins = append(origins[:len(origins):len(origins)], devConsoleOrigins...)
	}
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyKeyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           int(corsPreflightCache.Seconds()),
	})
}
