package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/logger"
)

const (
	requestIDHeader  = "X-Request-Id"
	cloudTraceHeader = "X-Cloud-Trace-Context"

	ctxRequestID contextKey = "request_id"
)

var (
	requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,64}$`)
	traceIDPattern   = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

// RequestID tags the request with an id taken from X-Request-Id, then from
// the trace id of X-Cloud-Trace-Context ("TRACE/SPAN;o=1"), and minted as a
// uuid when neither is usable. The id is echoed on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := incomingRequestID(r.Header)
			w.Header().Set(requestIDHeader, reqID)

			ctx := context.WithValue(r.Context(), ctxRequestID, reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func incomingRequestID(h http.Header) string {
	if id := h.Get(requestIDHeader); requestIDPattern.MatchString(id) {
		return id
	}
	trace, _, _ := strings.Cut(h.Get(cloudTraceHeader), "/")
	if traceIDPattern.MatchString(trace) {
		return trace
	}
	return uuid.NewString()
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}
