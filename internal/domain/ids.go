// Package domain contains the core value types of the server port layer:
// identifiers, localities, port strategies and sentinel errors.
// No infrastructure dependencies allowed here.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ServiceName is a value object naming a request/response service.
// Always valid in memory - use NewServiceName to construct.
type ServiceName struct {
	value string
}

// NewServiceName validates raw and returns a ServiceName. Names must be
// non-empty, at most MaxServiceNameLength bytes, and must not contain path
// separators or NUL bytes since they end up in data segment file names.
func NewServiceName(raw string) (ServiceName, error) {
	if raw == "" {
		return ServiceName{}, ErrEmptyID
	}
	if len(raw) > MaxServiceNameLength {
		return ServiceName{}, fmt.Errorf("service name exceeds max length %d: %w", MaxServiceNameLength, ErrInvalidServiceName)
	}
	if strings.ContainsAny(raw, "/\\\x00") {
		return ServiceName{}, fmt.Errorf("service name %q: %w", raw, ErrInvalidServiceName)
	}
	return ServiceName{value: raw}, nil
}

// MustServiceName creates a ServiceName, panicking on invalid input. Use only in tests.
func MustServiceName(raw string) ServiceName {
	name, err := NewServiceName(raw)
	if err != nil {
		panic(err)
	}
	return name
}

func (n ServiceName) String() string { return n.value }
func (n ServiceName) IsZero() bool   { return n.value == "" }

// ServerID is a value object representing a unique server port identifier.
type ServerID struct {
	value string
}

// NewServerID creates a ServerID from a raw string, validating it is a valid UUID.
func NewServerID(raw string) (ServerID, error) {
	if raw == "" {
		return ServerID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return ServerID{}, fmt.Errorf("invalid server ID %q: %w", raw, ErrInvalidID)
	}
	return ServerID{value: raw}, nil
}

// MustServerID creates a ServerID, panicking on invalid input. Use only in tests.
func MustServerID(raw string) ServerID {
	id, err := NewServerID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateServerID creates a new random ServerID.
func GenerateServerID() ServerID {
	return ServerID{value: uuid.NewString()}
}

func (id ServerID) String() string { return id.value }
func (id ServerID) IsZero() bool   { return id.value == "" }
