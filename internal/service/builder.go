package service

import (
	"context"

	"github.com/aelexs/shmport/internal/domain"
)

// ServerConfig is the per-server configuration accumulated by a builder.
type ServerConfig struct {
	AllocationStrategy           domain.AllocationStrategy
	InitialMaxSliceLen           int
	MaxLoanedResponsesPerRequest int
	UnableToDeliverStrategy      domain.UnableToDeliverStrategy
}

// normalized clamps the counts to at least one; a server always holds
// room for one response element.
func (c ServerConfig) normalized() ServerConfig {
	c.InitialMaxSliceLen = max(c.InitialMaxSliceLen, 1)
	c.MaxLoanedResponsesPerRequest = max(c.MaxLoanedResponsesPerRequest, 1)
	return c
}

// PortFactoryServer builds a server port on a service. It is a value type:
// every setter returns an updated copy and leaves the receiver unchanged.
type PortFactoryServer[F Flavor] struct {
	service *Service[F]
	cfg     ServerConfig
}

// AllocationStrategy sets how the server grows its response loan pool.
func (b PortFactoryServer[F]) AllocationStrategy(v domain.AllocationStrategy) PortFactoryServer[F] {
	b.cfg.AllocationStrategy = v
	return b
}

// InitialMaxSliceLen sets the initial number of elements a response
// slice may hold.
func (b PortFactoryServer[F]) InitialMaxSliceLen(n int) PortFactoryServer[F] {
	b.cfg.InitialMaxSliceLen = n
	return b
}

// MaxLoanedResponsesPerRequest caps the responses loaned concurrently for
// one inbound request.
func (b PortFactoryServer[F]) MaxLoanedResponsesPerRequest(n int) PortFactoryServer[F] {
	b.cfg.MaxLoanedResponsesPerRequest = n
	return b
}

// UnableToDeliverStrategy sets the policy for responses whose receiver
// queue is full.
func (b PortFactoryServer[F]) UnableToDeliverStrategy(v domain.UnableToDeliverStrategy) PortFactoryServer[F] {
	b.cfg.UnableToDeliverStrategy = v
	return b
}

// Config returns the configuration accumulated so far.
func (b PortFactoryServer[F]) Config() ServerConfig { return b.cfg }

// Service returns the service the builder attaches to.
func (b PortFactoryServer[F]) Service() *Service[F] { return b.service }

// Create attaches a new server to the service. It fails with
// domain.ErrExceedsMaxSupportedServers when the service is at capacity and
// with domain.ErrUnableToCreateDataSegment when the segment cannot be made.
func (b PortFactoryServer[F]) Create() (*Server[F], error) {
	return b.CreateContext(context.Background())
}

// CreateContext is Create with a caller context for tracing and logging.
func (b PortFactoryServer[F]) CreateContext(ctx context.Context) (*Server[F], error) {
	if b.service == nil {
		panic("service: PortFactoryServer used without a service")
	}
	return b.service.createServer(ctx, b.cfg)
}
