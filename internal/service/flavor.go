package service

import (
	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/internal/shm"
)

// Flavor selects the locality of a service at compile time. A
// Service[IPC] and a Service[Local] are distinct types, so their builders
// and servers can never be mixed up.
type Flavor interface {
	IPC | Local

	Locality() domain.Locality
	createSegment(dir, name string, size int) (shm.Segment, error)
	minSegmentSize() int
}

// IPC is the inter-process flavor. Servers keep their loans in a
// file-backed shared segment.
type IPC struct{}

func (IPC) Locality() domain.Locality { return domain.LocalityInterProcess }

func (IPC) createSegment(dir, name string, size int) (shm.Segment, error) {
	return shm.CreateFileSegment(dir, name, size)
}

func (IPC) minSegmentSize() int { return domain.MinInterProcessSegmentSize }

// Local is the intra-process flavor. Servers keep their loans on the heap.
type Local struct{}

func (Local) Locality() domain.Locality { return domain.LocalityIntraProcess }

func (Local) createSegment(_, name string, size int) (shm.Segment, error) {
	return shm.NewHeapSegment(name, size)
}

func (Local) minSegmentSize() int { return 1 }
