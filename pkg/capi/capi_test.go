package capi_test

import (
	"errors"
	"math"
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/internal/service"
	"github.com/aelexs/shmport/pkg/capi"
)

const invalidBuilderPanic = "capi: trying to use an invalid 'PortFactoryServerBuilderHandle'"

func newIPCService(t *testing.T, maxServers int) *service.Service[service.IPC] {
	t.Helper()
	svc, err := service.New[service.IPC](service.Config{
		Name:                domain.MustServiceName("calculator"),
		MaxServers:          maxServers,
		ResponseElementSize: 64,
		SegmentDir:          t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newLocalService(t *testing.T, maxServers int) *service.Service[service.Local] {
	t.Helper()
	svc, err := service.New[service.Local](service.Config{
		Name:                domain.MustServiceName("calculator"),
		MaxServers:          maxServers,
		ResponseElementSize: 64,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newFactory(t *testing.T, serviceType capi.ServiceType, maxServers int) capi.PortFactory {
	t.Helper()
	if serviceType == capi.ServiceTypeIPC {
		return capi.NewIPCPortFactory(newIPCService(t, maxServers))
	}
	return capi.NewLocalPortFactory(newLocalService(t, maxServers))
}

// configure applies the 128 / 4 / discard configuration used by the
// inter-process scenarios.
func configure(handle capi.PortFactoryServerBuilderHandle) {
	capi.PortFactoryServerBuilderSetInitialMaxSliceLen(&handle, 128)
	capi.PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(&handle, 4)
	capi.PortFactoryServerBuilderUnableToDeliverStrategy(&handle, capi.UnableToDeliverStrategyDiscardSample)
}

func TestCreate_InterProcessWithCapacity(t *testing.T) {
	factory := newFactory(t, capi.ServiceTypeIPC, 2)

	builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)
	configure(builder)

	var server capi.ServerHandle
	rc := capi.PortFactoryServerBuilderCreate(builder, nil, &server)

	require.Equal(t, capi.OK, rc)
	require.False(t, server.IsNull())
	assert.Equal(t, capi.ServiceTypeIPC, capi.ServerServiceType(&server))
	assert.Equal(t, uint(128), capi.ServerInitialMaxSliceLen(&server))
	assert.Equal(t, uint(4), capi.ServerMaxLoanedResponsesPerRequest(&server))
	assert.Equal(t, capi.UnableToDeliverStrategyDiscardSample, capi.ServerUnableToDeliverStrategy(&server))

	_, err := domain.NewServerID(capi.ServerID(&server))
	assert.NoError(t, err)

	require.NoError(t, capi.ServerDrop(server))
}

func TestCreate_InterProcessAtCapacity(t *testing.T) {
	factory := newFactory(t, capi.ServiceTypeIPC, 1)

	var first capi.ServerHandle
	require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(
		capi.PortFactoryRequestResponseServerBuilder(factory, nil), nil, &first))
	t.Cleanup(func() { _ = capi.ServerDrop(first) })

	builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)
	configure(builder)

	var storage capi.Server
	out := first
	rc := capi.PortFactoryServerBuilderCreate(builder, &storage, &out)

	assert.Equal(t, int(capi.ServerCreateErrorExceedsMaxSupportedServers), rc)
	assert.Equal(t, first, out, "out-parameter must be untouched on failure")
	assert.Equal(t, capi.Server{}, storage, "caller storage must be untouched on failure")
}

func TestCreate_UnableToCreateDataSegment(t *testing.T) {
	dir := t.TempDir()
	svc, err := service.New[service.IPC](service.Config{
		Name:       domain.MustServiceName("calculator"),
		SegmentDir: dir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	require.NoError(t, os.RemoveAll(dir))

	builder := capi.PortFactoryRequestResponseServerBuilder(capi.NewIPCPortFactory(svc), nil)

	var server capi.ServerHandle
	rc := capi.PortFactoryServerBuilderCreate(builder, nil, &server)

	assert.Equal(t, int(capi.ServerCreateErrorUnableToCreateDataSegment), rc)
	assert.True(t, server.IsNull())
}

func TestCreate_SegmentSizeOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		strategy capi.AllocationStrategy
		sliceLen uint
		loans    uint
		maxSize  int
	}{
		{"slice len above MaxInt", capi.AllocationStrategyStatic, math.MaxUint, 1, 0},
		{"product wraps to zero", capi.AllocationStrategyStatic, 1 << 48, 1, 0},
		{"power of two beyond int range", capi.AllocationStrategyPowerOfTwo, 1<<46 + 1, 1, 0},
		{"above default segment size", capi.AllocationStrategyStatic, 1 << 35, 1, 0},
		{"loans push past limit", capi.AllocationStrategyBestFit, 1024, 1024, 1 << 20},
	}

	for _, tt := range tests {
		for _, serviceType := range []capi.ServiceType{capi.ServiceTypeIPC, capi.ServiceTypeLocal} {
			t.Run(tt.name+"/"+serviceType.String(), func(t *testing.T) {
				cfg := service.Config{
					Name:                domain.MustServiceName("calculator"),
					ResponseElementSize: 64 << 10,
					MaxSegmentSize:      tt.maxSize,
					SegmentDir:          t.TempDir(),
				}
				var factory capi.PortFactory
				if serviceType == capi.ServiceTypeIPC {
					svc, err := service.New[service.IPC](cfg)
					require.NoError(t, err)
					t.Cleanup(func() { _ = svc.Close() })
					factory = capi.NewIPCPortFactory(svc)
				} else {
					svc, err := service.New[service.Local](cfg)
					require.NoError(t, err)
					t.Cleanup(func() { _ = svc.Close() })
					factory = capi.NewLocalPortFactory(svc)
				}

				builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)
				capi.PortFactoryServerBuilderSetAllocationStrategy(&builder, tt.strategy)
				capi.PortFactoryServerBuilderSetInitialMaxSliceLen(&builder, tt.sliceLen)
				capi.PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(&builder, tt.loans)

				var server capi.ServerHandle
				var rc int
				assert.NotPanics(t, func() {
					rc = capi.PortFactoryServerBuilderCreate(builder, nil, &server)
				})

				assert.Equal(t, int(capi.ServerCreateErrorUnableToCreateDataSegment), rc)
				assert.True(t, server.IsNull())
			})
		}
	}
}

func TestCreate_IntoCallerStorage(t *testing.T) {
	factory := newFactory(t, capi.ServiceTypeLocal, 2)

	var storage capi.Server
	var server capi.ServerHandle
	rc := capi.PortFactoryServerBuilderCreate(
		capi.PortFactoryRequestResponseServerBuilder(factory, nil), &storage, &server)

	require.Equal(t, capi.OK, rc)
	assert.NotEqual(t, capi.Server{}, storage)
	assert.Equal(t, capi.ServiceTypeLocal, capi.ServerServiceType(&server))

	require.NoError(t, capi.ServerDrop(server))
	assert.Panics(t, func() { capi.ServerServiceType(&server) })

	// Caller storage can host a new server once the old one is dropped.
	rc = capi.PortFactoryServerBuilderCreate(
		capi.PortFactoryRequestResponseServerBuilder(factory, nil), &storage, &server)
	require.Equal(t, capi.OK, rc)
	require.NoError(t, capi.ServerDrop(server))
}

func TestLocalityIsInvariantUnderConfiguration(t *testing.T) {
	setters := map[string]func(capi.PortFactoryServerBuilderHandleRef){
		"allocation strategy": func(h capi.PortFactoryServerBuilderHandleRef) {
			capi.PortFactoryServerBuilderSetAllocationStrategy(h, capi.AllocationStrategyPowerOfTwo)
		},
		"initial max slice len": func(h capi.PortFactoryServerBuilderHandleRef) {
			capi.PortFactoryServerBuilderSetInitialMaxSliceLen(h, 16)
		},
		"max loaned responses": func(h capi.PortFactoryServerBuilderHandleRef) {
			capi.PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(h, 3)
		},
		"unable to deliver": func(h capi.PortFactoryServerBuilderHandleRef) {
			capi.PortFactoryServerBuilderUnableToDeliverStrategy(h, capi.UnableToDeliverStrategyDiscardSample)
		},
	}

	for _, serviceType := range []capi.ServiceType{capi.ServiceTypeIPC, capi.ServiceTypeLocal} {
		t.Run(serviceType.String(), func(t *testing.T) {
			factory := newFactory(t, serviceType, 2)
			builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)

			for range 3 {
				for _, set := range setters {
					set(&builder)
				}
			}

			var server capi.ServerHandle
			require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(builder, nil, &server))
			assert.Equal(t, serviceType, capi.ServerServiceType(&server))
			require.NoError(t, capi.ServerDrop(server))
		})
	}
}

func TestSettersApplyInCallOrder(t *testing.T) {
	for _, serviceType := range []capi.ServiceType{capi.ServiceTypeIPC, capi.ServiceTypeLocal} {
		t.Run(serviceType.String(), func(t *testing.T) {
			factory := newFactory(t, serviceType, 2)
			builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)

			capi.PortFactoryServerBuilderSetInitialMaxSliceLen(&builder, 32)
			capi.PortFactoryServerBuilderSetAllocationStrategy(&builder, capi.AllocationStrategyBestFit)
			capi.PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(&builder, 5)
			capi.PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(&builder, 7)

			var server capi.ServerHandle
			require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(builder, nil, &server))
			t.Cleanup(func() { _ = capi.ServerDrop(server) })

			assert.Equal(t, uint(32), capi.ServerInitialMaxSliceLen(&server))
			assert.Equal(t, capi.AllocationStrategyBestFit, capi.ServerAllocationStrategy(&server))
			assert.Equal(t, uint(7), capi.ServerMaxLoanedResponsesPerRequest(&server), "later call wins")
			assert.Equal(t, capi.UnableToDeliverStrategyBlock, capi.ServerUnableToDeliverStrategy(&server))
		})
	}
}

func TestConsumedBuilderIsRejected(t *testing.T) {
	tests := []struct {
		name string
		use  func(capi.PortFactoryServerBuilderHandle)
	}{
		{"create again", func(h capi.PortFactoryServerBuilderHandle) {
			var server capi.ServerHandle
			capi.PortFactoryServerBuilderCreate(h, nil, &server)
		}},
		{"set allocation strategy", func(h capi.PortFactoryServerBuilderHandle) {
			capi.PortFactoryServerBuilderSetAllocationStrategy(&h, capi.AllocationStrategyStatic)
		}},
		{"set initial max slice len", func(h capi.PortFactoryServerBuilderHandle) {
			capi.PortFactoryServerBuilderSetInitialMaxSliceLen(&h, 1)
		}},
		{"set max loaned responses", func(h capi.PortFactoryServerBuilderHandle) {
			capi.PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(&h, 1)
		}},
		{"set unable to deliver strategy", func(h capi.PortFactoryServerBuilderHandle) {
			capi.PortFactoryServerBuilderUnableToDeliverStrategy(&h, capi.UnableToDeliverStrategyBlock)
		}},
		{"drop", func(h capi.PortFactoryServerBuilderHandle) {
			capi.PortFactoryServerBuilderDrop(h)
		}},
	}

	storages := map[string]func() *capi.PortFactoryServerBuilder{
		"heap storage":   func() *capi.PortFactoryServerBuilder { return nil },
		"caller storage": func() *capi.PortFactoryServerBuilder { return &capi.PortFactoryServerBuilder{} },
	}

	for storageName, storage := range storages {
		for _, tt := range tests {
			t.Run(storageName+"/"+tt.name, func(t *testing.T) {
				factory := newFactory(t, capi.ServiceTypeIPC, 4)
				builder := capi.PortFactoryRequestResponseServerBuilder(factory, storage())

				var server capi.ServerHandle
				require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(builder, nil, &server))
				t.Cleanup(func() { _ = capi.ServerDrop(server) })

				assert.PanicsWithValue(t, invalidBuilderPanic, func() { tt.use(builder) })
			})
		}
	}
}

func TestFailedCreateAlsoConsumesBuilder(t *testing.T) {
	factory := newFactory(t, capi.ServiceTypeLocal, 1)

	var first capi.ServerHandle
	require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(
		capi.PortFactoryRequestResponseServerBuilder(factory, nil), nil, &first))
	t.Cleanup(func() { _ = capi.ServerDrop(first) })

	builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)
	var server capi.ServerHandle
	rc := capi.PortFactoryServerBuilderCreate(builder, nil, &server)
	require.Equal(t, int(capi.ServerCreateErrorExceedsMaxSupportedServers), rc)

	assert.PanicsWithValue(t, invalidBuilderPanic, func() {
		capi.PortFactoryServerBuilderCreate(builder, nil, &server)
	})
}

func TestCallerBuilderStorageIsReusable(t *testing.T) {
	factory := newFactory(t, capi.ServiceTypeLocal, 2)
	var storage capi.PortFactoryServerBuilder

	for range 2 {
		builder := capi.PortFactoryRequestResponseServerBuilder(factory, &storage)
		var server capi.ServerHandle
		require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(builder, nil, &server))
		require.NoError(t, capi.ServerDrop(server))
	}
}

func TestPortFactoryServerBuilderDrop_ReleasesWithoutServer(t *testing.T) {
	svc := newLocalService(t, 1)
	builder := capi.PortFactoryRequestResponseServerBuilder(capi.NewLocalPortFactory(svc), nil)

	capi.PortFactoryServerBuilderDrop(builder)

	assert.Equal(t, 0, svc.NumberOfServers())
	assert.Panics(t, func() { capi.PortFactoryServerBuilderDrop(builder) })
}

func TestServerDrop_ReleasesCapacity(t *testing.T) {
	svc := newIPCService(t, 1)
	factory := capi.NewIPCPortFactory(svc)

	var server capi.ServerHandle
	require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(
		capi.PortFactoryRequestResponseServerBuilder(factory, nil), nil, &server))
	assert.Equal(t, 1, svc.NumberOfServers())

	require.NoError(t, capi.ServerDrop(server))
	assert.Equal(t, 0, svc.NumberOfServers())
	assert.Panics(t, func() { _ = capi.ServerDrop(server) })

	var again capi.ServerHandle
	assert.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(
		capi.PortFactoryRequestResponseServerBuilder(factory, nil), nil, &again))
	require.NoError(t, capi.ServerDrop(again))
}

func TestContractViolationsPanic(t *testing.T) {
	factory := newFactory(t, capi.ServiceTypeLocal, 2)

	t.Run("null builder handle", func(t *testing.T) {
		var server capi.ServerHandle
		assert.Panics(t, func() {
			capi.PortFactoryServerBuilderCreate(capi.PortFactoryServerBuilderHandle{}, nil, &server)
		})
	})

	t.Run("null builder handle ref", func(t *testing.T) {
		assert.Panics(t, func() {
			capi.PortFactoryServerBuilderSetInitialMaxSliceLen(nil, 1)
		})
	})

	t.Run("null server out-parameter", func(t *testing.T) {
		builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)
		defer capi.PortFactoryServerBuilderDrop(builder)
		assert.Panics(t, func() {
			capi.PortFactoryServerBuilderCreate(builder, nil, nil)
		})
	})

	t.Run("undeclared allocation strategy", func(t *testing.T) {
		builder := capi.PortFactoryRequestResponseServerBuilder(factory, nil)
		defer capi.PortFactoryServerBuilderDrop(builder)
		assert.Panics(t, func() {
			capi.PortFactoryServerBuilderSetAllocationStrategy(&builder, capi.AllocationStrategy(42))
		})
	})

	t.Run("null server handle", func(t *testing.T) {
		assert.Panics(t, func() { _ = capi.ServerDrop(capi.ServerHandle{}) })
	})

	t.Run("nil factory", func(t *testing.T) {
		assert.Panics(t, func() { capi.PortFactoryRequestResponseServerBuilder(nil, nil) })
	})
}

func TestServerCreateErrorCodes(t *testing.T) {
	assert.Equal(t, 0, capi.OK)
	assert.Equal(t, capi.ServerCreateError(1), capi.ServerCreateErrorExceedsMaxSupportedServers)
	assert.Equal(t, capi.ServerCreateError(2), capi.ServerCreateErrorUnableToCreateDataSegment)

	assert.True(t, errors.Is(capi.ServerCreateErrorExceedsMaxSupportedServers, domain.ErrExceedsMaxSupportedServers))
	assert.True(t, errors.Is(capi.ServerCreateErrorUnableToCreateDataSegment, domain.ErrUnableToCreateDataSegment))
	assert.False(t, errors.Is(capi.ServerCreateErrorUnableToCreateDataSegment, domain.ErrExceedsMaxSupportedServers))
}

func TestServerCreateErrorString(t *testing.T) {
	declared := []struct {
		code capi.ServerCreateError
		want string
	}{
		{capi.ServerCreateErrorExceedsMaxSupportedServers, "EXCEEDS_MAX_SUPPORTED_SERVERS"},
		{capi.ServerCreateErrorUnableToCreateDataSegment, "UNABLE_TO_CREATE_DATA_SEGMENT"},
	}

	for _, tt := range declared {
		t.Run(tt.want, func(t *testing.T) {
			p := capi.ServerCreateErrorString(tt.code)
			require.NotNil(t, p)

			assert.Equal(t, tt.want, cString(p))
			assert.Equal(t, tt.want, tt.code.String())
			assert.Equal(t, tt.want, tt.code.Error())
			assert.Same(t, p, capi.ServerCreateErrorString(tt.code), "repeated lookups return the same string")

			allocs := testing.AllocsPerRun(100, func() {
				_ = capi.ServerCreateErrorString(tt.code)
			})
			assert.Zero(t, allocs)
		})
	}

	t.Run("undeclared code", func(t *testing.T) {
		p := capi.ServerCreateErrorString(capi.ServerCreateError(99))
		require.NotNil(t, p)
		assert.NotEmpty(t, cString(p))
		assert.Equal(t, "ServerCreateError(99)", capi.ServerCreateError(99).String())
	})
}

// cString reads a NUL-terminated string the way a foreign caller would.
func cString(p *byte) string {
	var b []byte
	for ; *p != 0; p = (*byte)(unsafe.Add(unsafe.Pointer(p), 1)) {
		b = append(b, *p)
	}
	return string(b)
}

func TestNewPortFactory(t *testing.T) {
	ipc := capi.NewPortFactory(newIPCService(t, 1))
	local := capi.NewPortFactory(newLocalService(t, 1))

	for want, factory := range map[capi.ServiceType]capi.PortFactory{
		capi.ServiceTypeIPC:   ipc,
		capi.ServiceTypeLocal: local,
	} {
		var server capi.ServerHandle
		require.Equal(t, capi.OK, capi.PortFactoryServerBuilderCreate(
			capi.PortFactoryRequestResponseServerBuilder(factory, nil), nil, &server))
		assert.Equal(t, want, capi.ServerServiceType(&server))
		require.NoError(t, capi.ServerDrop(server))
	}
}
