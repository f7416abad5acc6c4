package capi

import (
	"strconv"

	"github.com/aelexs/shmport/internal/domain"
)

// OK is the status returned by successful calls.
const OK = 0

// ServiceType is the locality tag stored next to every object.
type ServiceType int32

const (
	ServiceTypeLocal ServiceType = iota
	ServiceTypeIPC
)

func (t ServiceType) String() string {
	switch t {
	case ServiceTypeLocal:
		return "LOCAL"
	case ServiceTypeIPC:
		return "IPC"
	default:
		return "ServiceType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Locality converts the tag to the domain locality.
func (t ServiceType) Locality() domain.Locality {
	switch t {
	case ServiceTypeIPC:
		return domain.LocalityInterProcess
	case ServiceTypeLocal:
		return domain.LocalityIntraProcess
	default:
		panic("capi: invalid service type " + t.String())
	}
}

// ServiceTypeFromLocality converts a domain locality to its tag.
func ServiceTypeFromLocality(l domain.Locality) ServiceType {
	switch l {
	case domain.LocalityInterProcess:
		return ServiceTypeIPC
	case domain.LocalityIntraProcess:
		return ServiceTypeLocal
	default:
		panic("capi: invalid locality " + l.String())
	}
}

// AllocationStrategy selects how a port grows its loan pool.
type AllocationStrategy int32

const (
	AllocationStrategyBestFit AllocationStrategy = iota
	AllocationStrategyPowerOfTwo
	AllocationStrategyStatic
)

func (s AllocationStrategy) toDomain() domain.AllocationStrategy {
	switch s {
	case AllocationStrategyBestFit:
		return domain.AllocationStrategyBestFit
	case AllocationStrategyPowerOfTwo:
		return domain.AllocationStrategyPowerOfTwo
	case AllocationStrategyStatic:
		return domain.AllocationStrategyStatic
	default:
		panic("capi: invalid allocation strategy " + strconv.Itoa(int(s)))
	}
}

func allocationStrategyFromDomain(s domain.AllocationStrategy) AllocationStrategy {
	switch s {
	case domain.AllocationStrategyBestFit:
		return AllocationStrategyBestFit
	case domain.AllocationStrategyPowerOfTwo:
		return AllocationStrategyPowerOfTwo
	default:
		return AllocationStrategyStatic
	}
}

// UnableToDeliverStrategy is the policy for responses whose receiver
// cannot take them right now.
type UnableToDeliverStrategy int32

const (
	UnableToDeliverStrategyBlock UnableToDeliverStrategy = iota
	UnableToDeliverStrategyDiscardSample
)

func (s UnableToDeliverStrategy) toDomain() domain.UnableToDeliverStrategy {
	switch s {
	case UnableToDeliverStrategyBlock:
		return domain.UnableToDeliverBlock
	case UnableToDeliverStrategyDiscardSample:
		return domain.UnableToDeliverDiscardSample
	default:
		panic("capi: invalid unable-to-deliver strategy " + strconv.Itoa(int(s)))
	}
}

func unableToDeliverStrategyFromDomain(s domain.UnableToDeliverStrategy) UnableToDeliverStrategy {
	if s == domain.UnableToDeliverDiscardSample {
		return UnableToDeliverStrategyDiscardSample
	}
	return UnableToDeliverStrategyBlock
}
