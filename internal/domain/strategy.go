package domain

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// Locality tells whether a service communicates across process boundaries
// through shared memory or stays inside a single process.
type Locality int

const (
	LocalityInterProcess Locality = iota
	LocalityIntraProcess
)

var localityNames = map[Locality]string{
	LocalityInterProcess: "ipc",
	LocalityIntraProcess: "local",
}

func (l Locality) String() string {
	if s, ok := localityNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Locality(%d)", int(l))
}

// ParseLocality accepts "ipc" or "local" (case-insensitive).
func ParseLocality(raw string) (Locality, error) {
	for l, s := range localityNames {
		if strings.EqualFold(raw, s) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", raw, ErrUnknownLocality)
}

// AllocationStrategy governs how a port grows its loan pool when a slice
// larger than the current maximum is requested.
type AllocationStrategy int

const (
	// AllocationStrategyStatic never grows; the initial size is final.
	AllocationStrategyStatic AllocationStrategy = iota
	// AllocationStrategyBestFit grows to the requested size plus headroom.
	AllocationStrategyBestFit
	// AllocationStrategyPowerOfTwo grows to the next power of two.
	AllocationStrategyPowerOfTwo
)

var allocationStrategyNames = map[AllocationStrategy]string{
	AllocationStrategyStatic:     "static",
	AllocationStrategyBestFit:    "best_fit",
	AllocationStrategyPowerOfTwo: "power_of_two",
}

func (s AllocationStrategy) String() string {
	if name, ok := allocationStrategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AllocationStrategy(%d)", int(s))
}

// ParseAllocationStrategy accepts "static", "best_fit" or "power_of_two".
func ParseAllocationStrategy(raw string) (AllocationStrategy, error) {
	for s, name := range allocationStrategyNames {
		if strings.EqualFold(raw, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("allocation strategy %q: %w", raw, ErrInvalidInput)
}

// Grow returns the segment size for a request of n bytes under s.
// Results that do not fit in an int saturate at math.MaxInt.
func (s AllocationStrategy) Grow(n int) int {
	switch s {
	case AllocationStrategyPowerOfTwo:
		if n <= 1 {
			return 1
		}
		if n > 1<<(bits.UintSize-2) {
			return math.MaxInt
		}
		return 1 << bits.Len(uint(n-1))
	case AllocationStrategyBestFit:
		if n > math.MaxInt-n/4 {
			return math.MaxInt
		}
		return n + n/4
	default:
		return n
	}
}

// SegmentSize returns the bytes a server needs to loan loans responses of
// sliceLen elements, each elementSize bytes, grown under s. It reports false
// when any factor is not positive or the grown size exceeds limit.
func (s AllocationStrategy) SegmentSize(elementSize, sliceLen, loans, limit int) (int, bool) {
	if elementSize <= 0 || sliceLen <= 0 || loans <= 0 || limit <= 0 {
		return 0, false
	}
	hi, n := bits.Mul64(uint64(elementSize), uint64(sliceLen))
	if hi != 0 {
		return 0, false
	}
	hi, n = bits.Mul64(n, uint64(loans))
	if hi != 0 || n > uint64(limit) {
		return 0, false
	}
	size := s.Grow(int(n))
	if size > limit {
		return 0, false
	}
	return size, true
}

// UnableToDeliverStrategy is the policy applied when a response cannot be
// delivered because the receiving queue is full.
type UnableToDeliverStrategy int

const (
	UnableToDeliverBlock UnableToDeliverStrategy = iota
	UnableToDeliverDiscardSample
)

var unableToDeliverNames = map[UnableToDeliverStrategy]string{
	UnableToDeliverBlock:         "block",
	UnableToDeliverDiscardSample: "discard",
}

func (s UnableToDeliverStrategy) String() string {
	if name, ok := unableToDeliverNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UnableToDeliverStrategy(%d)", int(s))
}

// ParseUnableToDeliverStrategy accepts "block" or "discard".
func ParseUnableToDeliverStrategy(raw string) (UnableToDeliverStrategy, error) {
	for s, name := range unableToDeliverNames {
		if strings.EqualFold(raw, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unable-to-deliver strategy %q: %w", raw, ErrInvalidInput)
}
