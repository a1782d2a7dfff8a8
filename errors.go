package livehook

import (
	"errors"
	"fmt"
)

// Error is a categorized livehook error.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes.
const (
	// ErrCodeNoData indicates a repository query matched no rows.
	// Repositories return it; the core translates it before callers see it.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeNotFound indicates no matching subscriber, lease, binding or upstream user.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeUpstreamRejected indicates the hub refused a request or could not be reached.
	ErrCodeUpstreamRejected = "UPSTREAM_REJECTED"

	// ErrCodeDatabase indicates the record store itself failed.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeRoutingGap indicates a subscriber's server has no channel binding.
	ErrCodeRoutingGap = "ROUTING_GAP"

	// ErrCodeLookupDegraded indicates an enrichment lookup failed and a default was used.
	ErrCodeLookupDegraded = "LOOKUP_DEGRADED"

	// ErrCodeValidation indicates validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDelivery indicates a chat message could not be sent.
	ErrCodeDelivery = "DELIVERY_ERROR"
)

// Common errors.
var (
	// ErrNoData is returned by repositories when a query returns no results.
	// This is not necessarily an error condition in all cases.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	return HasCode(err, ErrCodeNoData)
}

// IsNotFound checks if an error reports a missing record or upstream user.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsUpstreamRejected checks if an error reports a hub rejection.
func IsUpstreamRejected(err error) bool {
	return HasCode(err, ErrCodeUpstreamRejected)
}

// IsStoreFailure checks if an error reports a record store failure.
func IsStoreFailure(err error) bool {
	return HasCode(err, ErrCodeDatabase)
}
