// Package domainerrors defines the error taxonomy shared by the ledger core
// and its transport layer. Services attach a Code to every business-rule
// violation; the HTTP layer maps codes to status lines in one place.
package domainerrors

import (
	"fmt"
	"net/http"
)

type Code string

const (
	// Ledger business rules.
	CodeDuplicateID        Code = "duplicate_id"
	CodeDuplicateHash      Code = "duplicate_hash"
	CodeUnknownInstitution Code = "unknown_institution"
	CodeUnknownDegree      Code = "unknown_degree"
	CodeInvalidKey         Code = "invalid_key"

	// IntegrityViolation is defensive: a read observed state that the write
	// path's invariants should have made impossible (e.g. a hash index entry
	// pointing at a missing degree record).
	CodeIntegrityViolation Code = "integrity_violation"

	// CodeSubstrate wraps failures of the underlying store: connectivity,
	// conflict-retry exhaustion. The enclosing transaction left no partial
	// state and may be retried whole by the caller.
	CodeSubstrate Code = "substrate_error"

	// Transport-level codes.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal_error"
)

// Error carries a stable code, a human-readable message, and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the domain code from err, or CodeInternal when err carries
// none.
func CodeOf(err error) Code {
	if de, ok := err.(*Error); ok {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code to the HTTP status the transport layer
// should answer with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeDuplicateID, CodeDuplicateHash:
		return http.StatusConflict
	case CodeUnknownInstitution, CodeUnknownDegree, CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidKey, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeSubstrate:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
