package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/angelmondragon/vendorledger/api/responses"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

// Recoverer turns a handler panic into a 500 INTERNAL_ERROR envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					recovered(logg, w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func recovered(logg *logger.Logger, w http.ResponseWriter, r *http.Request, rec any) {
	cause, ok := rec.(error)
	if ok && errors.Is(cause, http.ErrAbortHandler) {
		panic(rec)
	}
	if !ok {
		cause = fmt.Errorf("%v", rec)
	}

	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"stack":  string(debug.Stack()),
		})
		logg.Error(ctx, "panic.recovered", cause)
	}
	responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "internal error"))
}
