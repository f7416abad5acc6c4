// Package protocol defines the JSON types of the rrserverd admin API.
// Clients use these types to create, list and drop server ports over HTTP.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aelexs/shmport/internal/domain"
)

// MaxRequestBytes bounds an admin request body.
const MaxRequestBytes = 4 << 10

// CreateServerRequest is the body of POST /v1/servers. Omitted fields keep
// the service defaults. Strategy names are the config names ("best_fit",
// "discard", ...).
type CreateServerRequest struct {
	AllocationStrategy           *string `json:"allocation_strategy,omitempty"`
	InitialMaxSliceLen           *uint   `json:"initial_max_slice_len,omitempty"`
	MaxLoanedResponsesPerRequest *uint   `json:"max_loaned_responses_per_request,omitempty"`
	UnableToDeliverStrategy      *string `json:"unable_to_deliver_strategy,omitempty"`
}

// Validate checks the strategy names. Counts are range-checked at creation:
// zero is clamped to one, and counts whose data segment exceeds the
// service's maximum fail with UNABLE_TO_CREATE_DATA_SEGMENT.
func (r CreateServerRequest) Validate() error {
	if r.AllocationStrategy != nil {
		if _, err := domain.ParseAllocationStrategy(*r.AllocationStrategy); err != nil {
			return fmt.Errorf("allocation_strategy: %w", err)
		}
	}
	if r.UnableToDeliverStrategy != nil {
		if _, err := domain.ParseUnableToDeliverStrategy(*r.UnableToDeliverStrategy); err != nil {
			return fmt.Errorf("unable_to_deliver_strategy: %w", err)
		}
	}
	return nil
}

// DecodeCreateServerRequest reads and validates a request body. Unknown
// fields and trailing data are rejected.
func DecodeCreateServerRequest(r io.Reader) (CreateServerRequest, error) {
	var req CreateServerRequest

	dec := json.NewDecoder(io.LimitReader(r, MaxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return CreateServerRequest{}, fmt.Errorf("%w: decode body: %w", domain.ErrInvalidInput, err)
	}
	if dec.More() {
		return CreateServerRequest{}, fmt.Errorf("%w: trailing data after body", domain.ErrInvalidInput)
	}

	if err := req.Validate(); err != nil {
		return CreateServerRequest{}, err
	}
	return req, nil
}

// ServerInfo describes a live server port.
type ServerInfo struct {
	ID                           string `json:"id"`
	ServiceName                  string `json:"service_name"`
	Locality                     string `json:"locality"`
	AllocationStrategy           string `json:"allocation_strategy"`
	InitialMaxSliceLen           uint   `json:"initial_max_slice_len"`
	MaxLoanedResponsesPerRequest uint   `json:"max_loaned_responses_per_request"`
	UnableToDeliverStrategy      string `json:"unable_to_deliver_strategy"`
	Segment                      string `json:"segment"`
	SegmentSize                  int    `json:"segment_size"`
	CreatedAt                    int64  `json:"created_at"` // Unix millis
}

// ServerList is the body of GET /v1/servers.
type ServerList struct {
	Servers    []ServerInfo `json:"servers"`
	MaxServers int          `json:"max_servers"`
}

// Error is the body of every non-2xx admin response. Code is the stable
// machine-readable reason, e.g. "EXCEEDS_MAX_SUPPORTED_SERVERS".
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e Error) Error() string {
	return e.Code + ": " + e.Message
}
