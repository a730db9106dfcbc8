// Package domainerrors defines the engine's error taxonomy. Services
// translate store sentinels into these coded errors; the HTTP layer maps
// codes to status and a generic message. Full context stays in logs and
// the audit trail, never in the response body.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers. The set is closed; adding a code
// means the public API contract changed.
type Code string

const (
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeInvalidRequest    Code = "invalid_request"
	CodeAccountState      Code = "account_state_violation"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeTransient         Code = "transient"
	CodeIntegrity         Code = "integrity_violation"
	CodeTimeout           Code = "timeout"
	CodeInternal          Code = "internal"
)

// Error carries a code and an operator-facing message. The message is
// for logs; PublicMessage is what callers see.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeAccountState, CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case CodeTransient, CodeTimeout:
		return http.StatusServiceUnavailable
	case CodeIntegrity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the generic, caller-visible message for a code.
// Deliberately vague: internal detail belongs in the audit record.
func PublicMessage(code Code) string {
	switch code {
	case CodeUnauthorized:
		return "missing or invalid credentials"
	case CodeForbidden:
		return "caller is not allowed to perform this operation"
	case CodeNotFound:
		return "resource not found"
	case CodeInvalidRequest:
		return "invalid request"
	case CodeAccountState:
		return "account is not in a transactable state"
	case CodeInsufficientFunds:
		return "insufficient funds"
	case CodeTransient:
		return "temporarily unavailable, retry with the same idempotency key"
	case CodeTimeout:
		return "operation timed out"
	case CodeIntegrity:
		return "audit integrity violation, operator intervention required"
	default:
		return "internal error"
	}
}
