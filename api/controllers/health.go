package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is anything the readiness check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VendorLedger-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named dependency and fails with 503 on the first error.
// Nil pingers are skipped so optional dependencies can be left unwired.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VendorLedger-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency not ready").WithDetails(map[string]any{"dependency": name}))
				return
			}
			checks[name] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
