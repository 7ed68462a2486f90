package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/angelmondragon/vendorledger/api/responses"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// guard lets the request through when check returns nil and writes the
// returned error envelope otherwise.
func guard(logg *logger.Logger, check func(context.Context) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits callers whose token carries one of roles. It must run
// after Auth; a request with no role at all is treated as unauthenticated.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	return guard(logg, func(ctx context.Context) error {
		role := RoleFromContext(ctx)
		switch {
		case role == "":
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
		case !slices.Contains(roles, role):
			return pkgerrors.Newf(pkgerrors.CodeForbidden, "role %s may not call this route", role)
		}
		return nil
	})
}

// VendorContext rejects requests whose token carries no vendor claim.
func VendorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return guard(logg, func(ctx context.Context) error {
		if _, ok := VendorIDFromContext(ctx); !ok {
			return pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
		}
		return nil
	})
}
