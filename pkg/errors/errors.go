// Package errors carries the ledger's typed error codes and how each one is
// rendered to API callers.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// CodeInsufficientBalance rejects a debit larger than the vendor's wallet earnings.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	// CodeConcurrency signals a lost optimistic-lock race; callers may retry.
	CodeConcurrency Code = "CONCURRENCY_CONFLICT"
)

// Metadata is the public face of a code. DetailsAllowed gates whether
// Error.Details reaches the response body.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:        {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:           {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:            {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:            {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict:       {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeInsufficientBalance: {http.StatusUnprocessableEntity, false, "insufficient balance", true},
	CodeConcurrency:         {http.StatusConflict, true, "concurrent update detected, retry the request", false},
	CodeIdempotency:         {http.StatusConflict, false, "idempotency key reused", true},
	CodeRateLimit:           {http.StatusTooManyRequests, false, "rate limit exceeded", false},
	CodeInternal:            {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:          {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure. The message is safe to show callers for the
// codes the response layer allows; the cause is for logs only.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given typed code anywhere in its
// chain, including codes wrapped under a different outer code.
func IsCode(err error, code Code) bool {
	for err != nil {
		var typed *Error
		if !stdErrors.As(err, &typed) {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

// Retryable reports whether a caller may repeat the operation. Untyped
// errors count as transient.
func Retryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return err != nil
	}
	return MetadataFor(typed.code).Retryable
}
