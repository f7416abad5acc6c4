package domain

import "errors"

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// ID validation errors
	ErrEmptyID   = errors.New("ID cannot be empty")
	ErrInvalidID = errors.New("invalid ID format")

	// Resource errors
	ErrNotFound = errors.New("resource not found")

	// Validation errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidServiceName = errors.New("invalid service name")
	ErrUnknownLocality    = errors.New("unknown service locality")

	// Server creation errors. These are the only recoverable failures of
	// the server builder's create step.
	ErrExceedsMaxSupportedServers = errors.New("exceeds max supported servers")
	ErrUnableToCreateDataSegment  = errors.New("unable to create data segment")

	// Lifecycle errors
	ErrServiceClosed = errors.New("service is closed")
	ErrServerClosed  = errors.New("server is already closed")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// IsCapacityExhausted returns true if the error reports that a service has
// reached its configured maximum number of servers.
func IsCapacityExhausted(err error) bool {
	return errors.Is(err, ErrExceedsMaxSupportedServers)
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry once resources are released elsewhere.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExceedsMaxSupportedServers) ||
		errors.Is(err, ErrUnableToCreateDataSegment)
}

// clientErrors enumerates all domain errors that represent caller-side issues.
var clientErrors = []error{
	ErrEmptyID,
	ErrInvalidID,
	ErrNotFound,
	ErrInvalidInput,
	ErrInvalidServiceName,
	ErrUnknownLocality,
}

// IsClientError returns true if the error represents a caller-side issue
// that will not succeed on retry without changes to the request.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true if the error represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
