package shm

import (
	"fmt"
	"sync"

	"github.com/aelexs/shmport/internal/domain"
)

// Segment is a fixed-size memory region holding a server's response loans.
type Segment interface {
	// Name identifies the segment; for file segments it is the file name.
	Name() string
	// Size returns the usable size in bytes.
	Size() int
	// Bytes exposes the mapped memory. Invalid after Close.
	Bytes() []byte
	// Close releases the segment. Calling it more than once is a no-op.
	Close() error
}

// HeapSegment is a Segment backed by ordinary Go memory. It is only
// reachable from the process that created it.
type HeapSegment struct {
	name string

	mu   sync.Mutex
	data []byte
}

// NewHeapSegment allocates an intra-process segment of size bytes.
func NewHeapSegment(name string, size int) (*HeapSegment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: segment %s: size %d", domain.ErrUnableToCreateDataSegment, name, size)
	}
	return &HeapSegment{name: name, data: make([]byte, size)}, nil
}

func (s *HeapSegment) Name() string { return s.name }

func (s *HeapSegment) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *HeapSegment) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Close drops the reference to the backing memory.
func (s *HeapSegment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

var _ Segment = (*HeapSegment)(nil)
