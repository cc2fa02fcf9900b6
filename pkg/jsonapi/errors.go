package jsonapi

import (
	"fmt"
	"net/http"
	"strconv"
)

// ErrorBuilder provides a fluent API for building Error objects.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new ErrorBuilder with the given status, code, and title.
func NewError(status int, code, title string) *ErrorBuilder {
	return &ErrorBuilder{
		err: Error{
			Status: strconv.Itoa(status),
			Code:   code,
			Title:  title,
		},
	}
}

// Detail sets the error detail message.
func (b *ErrorBuilder) Detail(detail string) *ErrorBuilder {
	b.err.Detail = detail
	return b
}

// Detailf sets the error detail message with formatting.
func (b *ErrorBuilder) Detailf(format string, args ...any) *ErrorBuilder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

// ID sets the error ID, usually the request id.
func (b *ErrorBuilder) ID(id string) *ErrorBuilder {
	b.err.ID = id
	return b
}

// Pointer sets the JSON pointer of the offending body field.
func (b *ErrorBuilder) Pointer(pointer string) *ErrorBuilder {
	b.source().Pointer = pointer
	return b
}

// Parameter sets the offending query parameter.
func (b *ErrorBuilder) Parameter(param string) *ErrorBuilder {
	b.source().Parameter = param
	return b
}

func (b *ErrorBuilder) source() *ErrorSource {
	if b.err.Source == nil {
		b.err.Source = &ErrorSource{}
	}
	return b.err.Source
}

// Build returns the constructed Error.
func (b *ErrorBuilder) Build() Error {
	return b.err
}

// StatusCode parses the status back into an int. Zero if unparsable.
func (e Error) StatusCode() int {
	n, _ := strconv.Atoi(e.Status)
	return n
}

// -----------------------------------------------------------------------------
// Common Errors
// -----------------------------------------------------------------------------

func ErrBadRequest(detail string) Error {
	return NewError(http.StatusBadRequest, "bad_request", "Bad Request").Detail(detail).Build()
}

func ErrInvalidParameter(param, detail string) Error {
	return NewError(http.StatusBadRequest, "invalid_parameter", "Invalid Parameter").
		Detail(detail).Parameter(param).Build()
}

func ErrUnauthorized(detail string) Error {
	if detail == "" {
		detail = "Authentication required"
	}
	return NewError(http.StatusUnauthorized, "unauthorized", "Unauthorized").Detail(detail).Build()
}

func ErrNotFound(resourceType string) Error {
	return NewError(http.StatusNotFound, "not_found", "Not Found").
		Detailf("The requested %s was not found", resourceType).Build()
}

func ErrConflict(detail string) Error {
	return NewError(http.StatusConflict, "conflict", "Conflict").Detail(detail).Build()
}

// ErrValidation creates a 422 error pointing at the offending attribute.
func ErrValidation(field, message string) Error {
	b := NewError(http.StatusUnprocessableEntity, "validation_error", "Validation Error").Detail(message)
	if field != "" {
		b.Pointer("/data/attributes/" + field)
	}
	return b.Build()
}

func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An unexpected error occurred"
	}
	return NewError(http.StatusInternalServerError, "internal_error", "Internal Server Error").Detail(detail).Build()
}

func ErrServiceUnavailable(detail string) Error {
	if detail == "" {
		detail = "Service temporarily unavailable"
	}
	return NewError(http.StatusServiceUnavailable, "service_unavailable", "Service Unavailable").Detail(detail).Build()
}

// -----------------------------------------------------------------------------
// Metering Errors
// -----------------------------------------------------------------------------

// ErrNotProvisioned is returned while no account has been set up.
func ErrNotProvisioned() Error {
	return NewError(http.StatusServiceUnavailable, "not_provisioned", "Setup Required").
		Detail("No account is provisioned; metered endpoints are unavailable").Build()
}

// ErrPaymentRequired is returned when every ledger entry is used up.
func ErrPaymentRequired() Error {
	return NewError(http.StatusPaymentRequired, "payment_required", "Payment Required").
		Detail("The account has no remaining request capacity").Build()
}

// ErrPersistenceFailure is returned when a charge could not be stored.
func ErrPersistenceFailure() Error {
	return NewError(http.StatusServiceUnavailable, "persistence_failure", "Persistence Failure").
		Detail("The request could not be accounted for and was not served").Build()
}

// ErrBadGateway is returned when the upstream cannot be reached.
func ErrBadGateway(detail string) Error {
	return NewError(http.StatusBadGateway, "upstream_error", "Bad Gateway").Detail(detail).Build()
}

// ErrGatewayTimeout is returned when the upstream did not answer in time.
func ErrGatewayTimeout() Error {
	return NewError(http.StatusGatewayTimeout, "upstream_timeout", "Gateway Timeout").
		Detail("The upstream did not respond in time").Build()
}
