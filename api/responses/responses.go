package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Codes whose own message is shown to the caller instead of the generic public one.
var callerFacingCodes = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:          true,
	pkgerrors.CodeForbidden:           true,
	pkgerrors.CodeUnauthorized:        true,
	pkgerrors.CodeNotFound:            true,
	pkgerrors.CodeConflict:            true,
	pkgerrors.CodeStateConflict:       true,
	pkgerrors.CodeInsufficientBalance: true,
	pkgerrors.CodeIdempotency:         true,
	pkgerrors.CodeRateLimit:           true,
}

const concurrencyRetryAfterSeconds = "1"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as the error envelope. Untyped errors become
// INTERNAL_ERROR and never leak their message or details.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		Retryable: meta.Retryable,
	}
	if callerFacingCodes[typed.Code()] && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	if typed.Code() == pkgerrors.CodeConcurrency {
		w.Header().Set("Retry-After", concurrencyRetryAfterSeconds)
	}

	logFailure(ctx, logg, meta.HTTPStatus, typed, err)
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr})
}

// logFailure logs 4xx at warn and 5xx at error with pg diagnostics.
func logFailure(ctx context.Context, logg *logger.Logger, status int, typed *pkgerrors.Error, err error) {
	if logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)

	if status < http.StatusInternalServerError {
		fields := map[string]any{
			"error_code":  dump.Code,
			"http_status": status,
			"error":       dump.TopMessage,
		}
		addStep(fields, typed)
		logg.Warn(logg.WithFields(ctx, fields), "request.rejected")
		return
	}

	fields := dump.LogFields()
	fields["http_status"] = status
	addStep(fields, typed)
	logg.Error(logg.WithFields(ctx, fields), "request.error", err)
}

func addStep(fields map[string]any, typed *pkgerrors.Error) {
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return
	}
	if step, ok := details["step"]; ok {
		fields["step"] = step
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
