package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vendorledger/api/responses"
	pkgAuth "github.com/angelmondragon/vendorledger/pkg/auth"
	"github.com/angelmondragon/vendorledger/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// bearerToken accepts "Bearer <token>" or a bare token. Any other scheme
// yields no token.
func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(raw, " ")
	if !found {
		return raw
	}
	if !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth verifies the bearer token and seeds the request context with the
// caller's actor id, role and, for vendors, vendor id.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	keys, keysErr := pkgAuth.NewKeys(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keysErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, keysErr, "token verification unavailable"))
				return
			}
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := keys.Parse(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithActor(r.Context(), claims.ActorID, claims.Role)
			if claims.VendorID != nil {
				ctx = WithVendorID(ctx, *claims.VendorID)
			}
			if logg != nil {
				ctx = logg.WithActor(ctx, claims.ActorID.String(), string(claims.Role))
				if claims.VendorID != nil {
					ctx = logg.WithVendorID(ctx, claims.VendorID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
