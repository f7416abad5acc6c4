package capi

import (
	"math"

	"github.com/aelexs/shmport/internal/service"
)

// portFactoryServerBuilderUnion is the closed set of builder variants.
// The tag stored in PortFactoryServerBuilder names the live variant.
type portFactoryServerBuilderUnion interface {
	serviceType() ServiceType
}

type ipcServerBuilder struct {
	builder service.PortFactoryServer[service.IPC]
}

type localServerBuilder struct {
	builder service.PortFactoryServer[service.Local]
}

func (ipcServerBuilder) serviceType() ServiceType   { return ServiceTypeIPC }
func (localServerBuilder) serviceType() ServiceType { return ServiceTypeLocal }

// PortFactoryServerBuilder is the storage of a server builder. Callers may
// declare one and pass its address to PortFactoryRequestResponseServerBuilder
// to avoid a package allocation; its fields are opaque.
type PortFactoryServerBuilder struct {
	serviceType ServiceType
	value       cell[portFactoryServerBuilderUnion]
	deleter     func(*PortFactoryServerBuilder)
}

func (b *PortFactoryServerBuilder) init(
	serviceType ServiceType,
	value portFactoryServerBuilderUnion,
	deleter func(*PortFactoryServerBuilder),
) {
	b.serviceType = serviceType
	b.value.init(value)
	b.deleter = deleter
}

func (b *PortFactoryServerBuilder) asHandle() PortFactoryServerBuilderHandle {
	return PortFactoryServerBuilderHandle{ptr: b}
}

func allocPortFactoryServerBuilder() *PortFactoryServerBuilder {
	return &PortFactoryServerBuilder{}
}

// deallocPortFactoryServerBuilder releases package-allocated storage. The
// struct is cleared so a stale handle still reaches an empty cell.
func deallocPortFactoryServerBuilder(b *PortFactoryServerBuilder) {
	*b = PortFactoryServerBuilder{}
}

func noOpPortFactoryServerBuilderDeleter(*PortFactoryServerBuilder) {}

// PortFactoryServerBuilderHandle is the owning handle of a server builder.
// Passing it to a function transfers ownership.
type PortFactoryServerBuilderHandle struct {
	ptr *PortFactoryServerBuilder
}

// PortFactoryServerBuilderHandleRef is the non-owning handle of a server
// builder. Passing it to a function does not transfer ownership.
type PortFactoryServerBuilderHandleRef = *PortFactoryServerBuilderHandle

// IsNull reports whether the handle references no builder.
func (h PortFactoryServerBuilderHandle) IsNull() bool { return h.ptr == nil }

func (h PortFactoryServerBuilderHandle) assertNonNull() {
	if h.ptr == nil {
		panic("capi: null PortFactoryServerBuilderHandle")
	}
}

func derefBuilder(ref PortFactoryServerBuilderHandleRef) *PortFactoryServerBuilder {
	if ref == nil {
		panic("capi: null PortFactoryServerBuilderHandleRef")
	}
	ref.assertNonNull()
	return ref.ptr
}

// PortFactory is the request/response port factory of one service. It is
// the inbound side of this package: a PortFactory hands out server
// builders tagged with the service's locality.
type PortFactory interface {
	serverBuilder() portFactoryServerBuilderUnion
}

type ipcPortFactory struct{ svc *service.Service[service.IPC] }
type localPortFactory struct{ svc *service.Service[service.Local] }

func (f ipcPortFactory) serverBuilder() portFactoryServerBuilderUnion {
	return ipcServerBuilder{builder: f.svc.ServerBuilder()}
}

func (f localPortFactory) serverBuilder() portFactoryServerBuilderUnion {
	return localServerBuilder{builder: f.svc.ServerBuilder()}
}

// NewIPCPortFactory wraps an inter-process service.
func NewIPCPortFactory(svc *service.Service[service.IPC]) PortFactory {
	if svc == nil {
		panic("capi: nil IPC service")
	}
	return ipcPortFactory{svc: svc}
}

// NewLocalPortFactory wraps an intra-process service.
func NewLocalPortFactory(svc *service.Service[service.Local]) PortFactory {
	if svc == nil {
		panic("capi: nil local service")
	}
	return localPortFactory{svc: svc}
}

// NewPortFactory wraps a service of either flavor.
func NewPortFactory[F service.Flavor](svc *service.Service[F]) PortFactory {
	switch s := any(svc).(type) {
	case *service.Service[service.IPC]:
		return NewIPCPortFactory(s)
	case *service.Service[service.Local]:
		return NewLocalPortFactory(s)
	default:
		panic("capi: unsupported service flavor")
	}
}

// PortFactoryRequestResponseServerBuilder opens a server builder on the
// factory's service, preloaded with the service defaults.
//
// structPtr is either nil or caller storage. With nil the storage is
// allocated here and released when the builder is consumed.
func PortFactoryRequestResponseServerBuilder(
	factory PortFactory,
	structPtr *PortFactoryServerBuilder,
) PortFactoryServerBuilderHandle {
	if factory == nil {
		panic("capi: nil PortFactory")
	}

	deleter := noOpPortFactoryServerBuilderDeleter
	if structPtr == nil {
		structPtr = allocPortFactoryServerBuilder()
		deleter = deallocPortFactoryServerBuilder
	}

	value := factory.serverBuilder()
	structPtr.init(value.serviceType(), value, deleter)
	return structPtr.asHandle()
}

// PortFactoryServerBuilderSetAllocationStrategy sets how the server grows
// its response loan pool.
func PortFactoryServerBuilderSetAllocationStrategy(
	handle PortFactoryServerBuilderHandleRef,
	value AllocationStrategy,
) {
	strategy := value.toDomain()
	transformBuilder(handle,
		func(b service.PortFactoryServer[service.IPC]) service.PortFactoryServer[service.IPC] {
			return b.AllocationStrategy(strategy)
		},
		func(b service.PortFactoryServer[service.Local]) service.PortFactoryServer[service.Local] {
			return b.AllocationStrategy(strategy)
		},
	)
}

// PortFactoryServerBuilderSetInitialMaxSliceLen sets the initial number of
// elements a response slice may hold.
func PortFactoryServerBuilderSetInitialMaxSliceLen(
	handle PortFactoryServerBuilderHandleRef,
	value uint,
) {
	n := countFromUint(value)
	transformBuilder(handle,
		func(b service.PortFactoryServer[service.IPC]) service.PortFactoryServer[service.IPC] {
			return b.InitialMaxSliceLen(n)
		},
		func(b service.PortFactoryServer[service.Local]) service.PortFactoryServer[service.Local] {
			return b.InitialMaxSliceLen(n)
		},
	)
}

// PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest defines how many
// responses the server can loan per request.
func PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(
	handle PortFactoryServerBuilderHandleRef,
	value uint,
) {
	n := countFromUint(value)
	transformBuilder(handle,
		func(b service.PortFactoryServer[service.IPC]) service.PortFactoryServer[service.IPC] {
			return b.MaxLoanedResponsesPerRequest(n)
		},
		func(b service.PortFactoryServer[service.Local]) service.PortFactoryServer[service.Local] {
			return b.MaxLoanedResponsesPerRequest(n)
		},
	)
}

// countFromUint saturates v at math.MaxInt. A saturated count never fits a
// data segment, so create reports UNABLE_TO_CREATE_DATA_SEGMENT for it.
func countFromUint(v uint) int {
	if v > math.MaxInt {
		return math.MaxInt
	}
	return int(v)
}

// PortFactoryServerBuilderUnableToDeliverStrategy sets the policy for
// responses that cannot be delivered.
func PortFactoryServerBuilderUnableToDeliverStrategy(
	handle PortFactoryServerBuilderHandleRef,
	value UnableToDeliverStrategy,
) {
	strategy := value.toDomain()
	transformBuilder(handle,
		func(b service.PortFactoryServer[service.IPC]) service.PortFactoryServer[service.IPC] {
			return b.UnableToDeliverStrategy(strategy)
		},
		func(b service.PortFactoryServer[service.Local]) service.PortFactoryServer[service.Local] {
			return b.UnableToDeliverStrategy(strategy)
		},
	)
}

// PortFactoryServerBuilderDrop releases a builder without creating a
// server. The handle is invalid afterwards.
func PortFactoryServerBuilderDrop(handle PortFactoryServerBuilderHandle) {
	handle.assertNonNull()

	b := handle.ptr
	b.value.take("PortFactoryServerBuilderHandle")
	b.deleter(b)
}

// transformBuilder takes the live variant out of the cell, applies the
// transformation matching the stored tag and puts the result back under
// the same tag.
func transformBuilder(
	handle PortFactoryServerBuilderHandleRef,
	ipc func(service.PortFactoryServer[service.IPC]) service.PortFactoryServer[service.IPC],
	local func(service.PortFactoryServer[service.Local]) service.PortFactoryServer[service.Local],
) {
	b := derefBuilder(handle)

	switch b.serviceType {
	case ServiceTypeIPC:
		v := takeIPCBuilder(b)
		b.value.set(ipcServerBuilder{builder: ipc(v.builder)})
	case ServiceTypeLocal:
		v := takeLocalBuilder(b)
		b.value.set(localServerBuilder{builder: local(v.builder)})
	default:
		panic("capi: invalid service type " + b.serviceType.String())
	}
}

func takeIPCBuilder(b *PortFactoryServerBuilder) ipcServerBuilder {
	v, ok := b.value.take("PortFactoryServerBuilderHandle").(ipcServerBuilder)
	if !ok {
		panic("capi: builder variant does not match service type IPC")
	}
	return v
}

func takeLocalBuilder(b *PortFactoryServerBuilder) localServerBuilder {
	v, ok := b.value.take("PortFactoryServerBuilderHandle").(localServerBuilder)
	if !ok {
		panic("capi: builder variant does not match service type LOCAL")
	}
	return v
}
