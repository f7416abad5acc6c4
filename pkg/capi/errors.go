package capi

import (
	"errors"
	"fmt"
	"strconv"
	"unsafe"

	"github.com/aelexs/shmport/internal/domain"
)

// ServerCreateError is the status returned by PortFactoryServerBuilderCreate
// on failure. Codes start right above OK.
type ServerCreateError int32

const (
	ServerCreateErrorExceedsMaxSupportedServers ServerCreateError = OK + 1 + iota
	ServerCreateErrorUnableToCreateDataSegment
)

// serverCreateErrorStrings holds the NUL-terminated descriptions handed out
// by ServerCreateErrorString. They are package constants, so the returned
// pointers stay valid for the life of the process.
var serverCreateErrorStrings = map[ServerCreateError]string{
	ServerCreateErrorExceedsMaxSupportedServers: "EXCEEDS_MAX_SUPPORTED_SERVERS\x00",
	ServerCreateErrorUnableToCreateDataSegment:  "UNABLE_TO_CREATE_DATA_SEGMENT\x00",
}

const unknownServerCreateError = "UNKNOWN_SERVER_CREATE_ERROR\x00"

// serverCreateErrorMappings maps native creation failures to codes.
// Order matters: first match wins (via errors.Is).
var serverCreateErrorMappings = []struct {
	err  error
	code ServerCreateError
}{
	{domain.ErrExceedsMaxSupportedServers, ServerCreateErrorExceedsMaxSupportedServers},
	{domain.ErrUnableToCreateDataSegment, ServerCreateErrorUnableToCreateDataSegment},
}

// ServerCreateErrorString returns a pointer to a static NUL-terminated
// description of e. The string must not be modified; it is valid as long
// as the program runs. Undeclared codes get a generic description.
func ServerCreateErrorString(e ServerCreateError) *byte {
	s, ok := serverCreateErrorStrings[e]
	if !ok {
		s = unknownServerCreateError
	}
	return unsafe.StringData(s)
}

// String returns the description without the terminating NUL.
func (e ServerCreateError) String() string {
	s, ok := serverCreateErrorStrings[e]
	if !ok {
		return "ServerCreateError(" + strconv.Itoa(int(e)) + ")"
	}
	return s[:len(s)-1]
}

// Error makes a code usable as a Go error.
func (e ServerCreateError) Error() string { return e.String() }

// Is lets errors.Is match a code against the domain sentinel it stands for.
func (e ServerCreateError) Is(target error) bool {
	for _, m := range serverCreateErrorMappings {
		if m.code == e {
			return target == m.err
		}
	}
	return false
}

// serverCreateErrorCode maps a native creation error to its status.
// The native builder only fails in the mapped ways; anything else means
// the collaborator broke its contract and is not hidden behind a code.
func serverCreateErrorCode(err error) int {
	for _, m := range serverCreateErrorMappings {
		if errors.Is(err, m.err) {
			return int(m.code)
		}
	}
	panic(fmt.Sprintf("capi: unexpected server create error: %v", err))
}
