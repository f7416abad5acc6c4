package capi

import (
	"github.com/aelexs/shmport/internal/service"
)

// serverUnion is the closed set of server variants.
type serverUnion interface {
	serviceType() ServiceType
	config() service.ServerConfig
	id() string
	close() error
}

type ipcServer struct {
	server *service.Server[service.IPC]
}

type localServer struct {
	server *service.Server[service.Local]
}

func (ipcServer) serviceType() ServiceType         { return ServiceTypeIPC }
func (s ipcServer) config() service.ServerConfig   { return s.server.Config() }
func (s ipcServer) id() string                     { return s.server.ID().String() }
func (s ipcServer) close() error                   { return s.server.Close() }
func (localServer) serviceType() ServiceType       { return ServiceTypeLocal }
func (s localServer) config() service.ServerConfig { return s.server.Config() }
func (s localServer) id() string                   { return s.server.ID().String() }
func (s localServer) close() error                 { return s.server.Close() }

// Server is the storage of a server port. Callers may declare one and pass
// its address to PortFactoryServerBuilderCreate; its fields are opaque.
type Server struct {
	serviceType ServiceType
	value       cell[serverUnion]
	deleter     func(*Server)
}

func (s *Server) init(serviceType ServiceType, value serverUnion, deleter func(*Server)) {
	s.serviceType = serviceType
	s.value.init(value)
	s.deleter = deleter
}

func (s *Server) asHandle() ServerHandle {
	return ServerHandle{ptr: s}
}

func allocServer() *Server {
	return &Server{}
}

func deallocServer(s *Server) {
	*s = Server{}
}

func noOpServerDeleter(*Server) {}

// ServerHandle is the owning handle of a server.
type ServerHandle struct {
	ptr *Server
}

// ServerHandleRef is the non-owning handle of a server.
type ServerHandleRef = *ServerHandle

// IsNull reports whether the handle references no server.
func (h ServerHandle) IsNull() bool { return h.ptr == nil }

func (h ServerHandle) assertNonNull() {
	if h.ptr == nil {
		panic("capi: null ServerHandle")
	}
}

func derefServer(ref ServerHandleRef) *Server {
	if ref == nil {
		panic("capi: null ServerHandleRef")
	}
	ref.assertNonNull()
	return ref.ptr
}

// withServer lends the live server variant to fn and puts it back.
func withServer(ref ServerHandleRef, fn func(serverUnion)) {
	s := derefServer(ref)
	v := s.value.take("ServerHandle")
	if v.serviceType() != s.serviceType {
		panic("capi: server variant does not match service type " + s.serviceType.String())
	}
	defer s.value.set(v)
	fn(v)
}

// ServerServiceType returns the locality tag of the server.
func ServerServiceType(handle ServerHandleRef) ServiceType {
	var t ServiceType
	withServer(handle, func(v serverUnion) { t = v.serviceType() })
	return t
}

// ServerID returns the unique id of the server port.
func ServerID(handle ServerHandleRef) string {
	var id string
	withServer(handle, func(v serverUnion) { id = v.id() })
	return id
}

// ServerInitialMaxSliceLen returns the initial max slice length the server
// was created with.
func ServerInitialMaxSliceLen(handle ServerHandleRef) uint {
	var n uint
	withServer(handle, func(v serverUnion) { n = uint(v.config().InitialMaxSliceLen) })
	return n
}

// ServerMaxLoanedResponsesPerRequest returns the loan cap per request.
func ServerMaxLoanedResponsesPerRequest(handle ServerHandleRef) uint {
	var n uint
	withServer(handle, func(v serverUnion) { n = uint(v.config().MaxLoanedResponsesPerRequest) })
	return n
}

// ServerAllocationStrategy returns the server's allocation strategy.
func ServerAllocationStrategy(handle ServerHandleRef) AllocationStrategy {
	var s AllocationStrategy
	withServer(handle, func(v serverUnion) { s = allocationStrategyFromDomain(v.config().AllocationStrategy) })
	return s
}

// ServerUnableToDeliverStrategy returns the server's delivery policy.
func ServerUnableToDeliverStrategy(handle ServerHandleRef) UnableToDeliverStrategy {
	var s UnableToDeliverStrategy
	withServer(handle, func(v serverUnion) { s = unableToDeliverStrategyFromDomain(v.config().UnableToDeliverStrategy) })
	return s
}

// ServerDrop detaches the server from its service, releases its data
// segment and its storage. The handle is invalid afterwards. The returned
// error reports a failure to release the segment; the server is detached
// either way.
func ServerDrop(handle ServerHandle) error {
	handle.assertNonNull()

	s := handle.ptr
	v := s.value.take("ServerHandle")
	s.deleter(s)
	return v.close()
}
