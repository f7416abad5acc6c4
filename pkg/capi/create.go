package capi

// PortFactoryServerBuilderCreate creates a server and consumes the builder.
//
// structPtr is either nil or caller storage for the server. With nil the
// storage is allocated here and released by ServerDrop. handlePtr must not
// be nil; on success it receives the server handle.
//
// Returns OK on success, a ServerCreateError otherwise. On failure
// handlePtr and structPtr are left untouched. The builder handle is
// invalid after the call regardless of the outcome; its storage is
// released before the server is created.
func PortFactoryServerBuilderCreate(
	handle PortFactoryServerBuilderHandle,
	structPtr *Server,
	handlePtr *ServerHandle,
) int {
	handle.assertNonNull()
	if handlePtr == nil {
		panic("capi: null ServerHandle out-parameter")
	}

	builderStruct := handle.ptr
	serviceType := builderStruct.serviceType
	builder, ok := builderStruct.value.tryTake()
	if !ok {
		panic("capi: trying to use an invalid 'PortFactoryServerBuilderHandle'")
	}
	builderStruct.deleter(builderStruct)

	var server serverUnion
	switch serviceType {
	case ServiceTypeIPC:
		v, ok := builder.(ipcServerBuilder)
		if !ok {
			panic("capi: builder variant does not match service type IPC")
		}
		s, err := v.builder.Create()
		if err != nil {
			return serverCreateErrorCode(err)
		}
		server = ipcServer{server: s}
	case ServiceTypeLocal:
		v, ok := builder.(localServerBuilder)
		if !ok {
			panic("capi: builder variant does not match service type LOCAL")
		}
		s, err := v.builder.Create()
		if err != nil {
			return serverCreateErrorCode(err)
		}
		server = localServer{server: s}
	default:
		panic("capi: invalid service type " + serviceType.String())
	}

	deleter := noOpServerDeleter
	if structPtr == nil {
		structPtr = allocServer()
		deleter = deallocServer
	}
	structPtr.init(serviceType, server, deleter)
	*handlePtr = structPtr.asHandle()

	return OK
}
