// Package errmap translates domain errors into transport status codes.
package errmap

import (
	"errors"
	"net/http"

	"github.com/aelexs/shmport/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// httpMapping defines a domain error to HTTP status/code mapping.
type httpMapping struct {
	err        error
	statusCode int
	code       string
}

// httpMappings maps domain errors to HTTP status codes and error codes.
// Order matters: first match wins (via errors.Is). A closed service also
// reports capacity exhaustion, so ErrServiceClosed comes first.
var httpMappings = []httpMapping{
	// Lifecycle
	{domain.ErrServiceClosed, http.StatusServiceUnavailable, "SERVICE_CLOSED"},
	{domain.ErrServerClosed, http.StatusGone, "SERVER_CLOSED"},

	// Server creation failures
	{domain.ErrExceedsMaxSupportedServers, http.StatusTooManyRequests, "EXCEEDS_MAX_SUPPORTED_SERVERS"},
	{domain.ErrUnableToCreateDataSegment, http.StatusInsufficientStorage, "UNABLE_TO_CREATE_DATA_SEGMENT"},

	// Resource errors
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},

	// Validation errors: 400
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidServiceName, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrUnknownLocality, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrEmptyID, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidID, http.StatusBadRequest, "INVALID_ARGUMENT"},
}

// ToHTTPError converts a domain error to an HTTP error.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: err.Error()}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}
