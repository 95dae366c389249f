// Package domainerrors defines coded errors for the onboarding domain.
//
// Stores and gateways return sentinel or wrapped infrastructure errors;
// services translate those into coded domain errors; the HTTP layer maps
// codes onto status codes. Codes are part of the API contract: clients
// branch on them (CodeDuplicateIdentity redirects, CodeGateway retries).
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation covers malformed input and cross-checks that fail before
	// anything is persisted: bank/cheque mismatch, vault identity mismatch.
	CodeValidation Code = "validation_error"

	// CodeDuplicateIdentity means the tax identifier already has a sealed
	// profile. Terminal: the client should redirect, not retry.
	CodeDuplicateIdentity Code = "duplicate_identity"

	// CodeIntegrity means two distinct local customers claim the same pair of
	// external identities. Fatal, never auto-resolved, zero writes performed.
	CodeIntegrity Code = "integrity_error"

	// CodeGateway tags a failed external call with its originating system.
	// Retried by the caller, never internally.
	CodeGateway Code = "gateway_error"

	// CodePartialSync reports a multi-connection sync where at least one
	// connection failed while others kept their updates.
	CodePartialSync Code = "partial_sync"

	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeBadRequest Code = "bad_request"
	CodeInternal   Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
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

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to a cause, preserving the chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to its HTTP response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeDuplicateIdentity, CodeConflict, CodeIntegrity:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeGateway:
		return http.StatusBadGateway
	case CodePartialSync:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}
