// Package service is the in-process core the server port layer builds on.
// It owns service configuration, accounts for the servers attached to each
// service and creates the data segment every server publishes responses in.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/internal/observability"
)

var tracer = observability.Tracer("shmport/service")

var (
	serversCreatedTotal   metric.Int64Counter
	serverCreateFailTotal metric.Int64Counter
	serversActive         metric.Int64UpDownCounter
)

func init() {
	m := observability.Meter("shmport/service")

	serversCreatedTotal, _ = m.Int64Counter("shm_servers_created_total",
		metric.WithDescription("Total servers created"))
	serverCreateFailTotal, _ = m.Int64Counter("shm_server_create_failures_total",
		metric.WithDescription("Total failed server creations by reason"))
	serversActive, _ = m.Int64UpDownCounter("shm_servers_active",
		metric.WithDescription("Servers currently attached to a service"))
}

// Config holds the static configuration of a service. Zero limits fall
// back to the compiled defaults in the domain package.
type Config struct {
	Name domain.ServiceName

	// MaxServers caps the servers attached at the same time.
	MaxServers int

	// Server defaults handed to every new builder.
	MaxLoanedResponsesPerRequest int
	InitialMaxSliceLen           int
	AllocationStrategy           domain.AllocationStrategy
	UnableToDeliverStrategy      domain.UnableToDeliverStrategy

	// ResponseElementSize is the byte size of one response element.
	ResponseElementSize int

	// MaxSegmentSize caps the data segment of a single server. Servers
	// whose loans need more fail with ErrUnableToCreateDataSegment.
	MaxSegmentSize int

	// SegmentDir is where inter-process segments are created. Required
	// for the IPC flavor, ignored by Local.
	SegmentDir    string
	SegmentPrefix string

	Clock  domain.Clock
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxServers == 0 {
		c.MaxServers = domain.DefaultMaxServers
	}
	if c.MaxLoanedResponsesPerRequest == 0 {
		c.MaxLoanedResponsesPerRequest = domain.DefaultMaxLoanedResponsesPerRequest
	}
	if c.InitialMaxSliceLen == 0 {
		c.InitialMaxSliceLen = domain.DefaultInitialMaxSliceLen
	}
	if c.ResponseElementSize == 0 {
		c.ResponseElementSize = domain.DefaultResponseElementSize
	}
	if c.MaxSegmentSize == 0 {
		c.MaxSegmentSize = domain.DefaultMaxSegmentSize
	}
	if c.Clock == nil {
		c.Clock = domain.RealClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service is a named request/response service of flavor F.
// It is safe for concurrent use.
type Service[F Flavor] struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	servers map[domain.ServerID]*Server[F]
	closed  bool
}

// New validates cfg and opens a service.
func New[F Flavor](cfg Config) (*Service[F], error) {
	cfg.applyDefaults()

	if cfg.Name.IsZero() {
		return nil, fmt.Errorf("service name: %w", domain.ErrEmptyID)
	}
	if cfg.MaxServers < 0 || cfg.MaxLoanedResponsesPerRequest < 0 ||
		cfg.InitialMaxSliceLen < 0 || cfg.ResponseElementSize < 0 || cfg.MaxSegmentSize < 0 {
		return nil, fmt.Errorf("service %s: negative limit: %w", cfg.Name, domain.ErrInvalidInput)
	}
	if cfg.MaxSegmentSize > domain.MaxSegmentSizeCeiling {
		return nil, fmt.Errorf("service %s: max segment size %d above %d: %w",
			cfg.Name, cfg.MaxSegmentSize, domain.MaxSegmentSizeCeiling, domain.ErrInvalidInput)
	}

	var flavor F
	if flavor.Locality() == domain.LocalityInterProcess && cfg.SegmentDir == "" {
		return nil, fmt.Errorf("%w: segment dir for service %s", domain.ErrConfigRequired, cfg.Name)
	}

	s := &Service[F]{
		cfg: cfg,
		logger: cfg.Logger.With(
			slog.String("service_name", cfg.Name.String()),
			slog.String("locality", flavor.Locality().String()),
		),
		servers: make(map[domain.ServerID]*Server[F]),
	}
	s.logger.Debug("service opened", slog.Int("max_servers", cfg.MaxServers))
	return s, nil
}

// Name returns the service name.
func (s *Service[F]) Name() domain.ServiceName { return s.cfg.Name }

// Locality reports the flavor's locality.
func (s *Service[F]) Locality() domain.Locality {
	var flavor F
	return flavor.Locality()
}

// MaxServers returns the configured server capacity.
func (s *Service[F]) MaxServers() int { return s.cfg.MaxServers }

// ServerBuilder returns a builder preloaded with the service defaults.
func (s *Service[F]) ServerBuilder() PortFactoryServer[F] {
	return PortFactoryServer[F]{
		service: s,
		cfg: ServerConfig{
			AllocationStrategy:           s.cfg.AllocationStrategy,
			InitialMaxSliceLen:           s.cfg.InitialMaxSliceLen,
			MaxLoanedResponsesPerRequest: s.cfg.MaxLoanedResponsesPerRequest,
			UnableToDeliverStrategy:      s.cfg.UnableToDeliverStrategy,
		},
	}
}

// NumberOfServers returns how many servers are currently attached.
func (s *Service[F]) NumberOfServers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.servers)
}

// Server looks up an attached server.
func (s *Service[F]) Server(id domain.ServerID) (*Server[F], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, ok := s.servers[id]
	if !ok {
		return nil, fmt.Errorf("server %s: %w", id, domain.ErrNotFound)
	}
	return srv, nil
}

// Servers returns the attached servers ordered by creation time.
func (s *Service[F]) Servers() []*Server[F] {
	s.mu.Lock()
	out := make([]*Server[F], 0, len(s.servers))
	for _, srv := range s.servers {
		out = append(out, srv)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// Close detaches and closes every server. Later creations fail with
// ErrExceedsMaxSupportedServers since a closed service has no capacity.
func (s *Service[F]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	servers := make([]*Server[F], 0, len(s.servers))
	for _, srv := range s.servers {
		servers = append(servers, srv)
	}
	s.mu.Unlock()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.logger.Debug("service closed", slog.Int("servers_closed", len(servers)))
	return firstErr
}

func (s *Service[F]) createServer(ctx context.Context, cfg ServerConfig) (*Server[F], error) {
	ctx, span := tracer.Start(ctx, "service.CreateServer")
	defer span.End()

	var flavor F
	logger := observability.WithTraceID(ctx, s.logger)
	attrs := metric.WithAttributes(s.metricAttrs()...)
	failed := func(reason string) metric.AddOption {
		return metric.WithAttributes(append(s.metricAttrs(), attribute.String("reason", reason))...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		serverCreateFailTotal.Add(ctx, 1, failed("closed"))
		return nil, fmt.Errorf("%w: %w", domain.ErrExceedsMaxSupportedServers, domain.ErrServiceClosed)
	}
	if len(s.servers) >= s.cfg.MaxServers {
		serverCreateFailTotal.Add(ctx, 1, failed("capacity"))
		logger.WarnContext(ctx, "server capacity reached", slog.Int("max_servers", s.cfg.MaxServers))
		return nil, fmt.Errorf("service %s holds %d servers: %w", s.cfg.Name, len(s.servers), domain.ErrExceedsMaxSupportedServers)
	}

	cfg = cfg.normalized()
	id := domain.GenerateServerID()
	name := fmt.Sprintf("%s%s.%s.server", s.cfg.SegmentPrefix, s.cfg.Name, id)
	size, ok := cfg.AllocationStrategy.SegmentSize(s.cfg.ResponseElementSize,
		cfg.InitialMaxSliceLen, cfg.MaxLoanedResponsesPerRequest, s.cfg.MaxSegmentSize)
	if !ok {
		serverCreateFailTotal.Add(ctx, 1, failed("data_segment"))
		logger.WarnContext(ctx, "data segment size out of range",
			slog.Int("initial_max_slice_len", cfg.InitialMaxSliceLen),
			slog.Int("max_loaned_responses_per_request", cfg.MaxLoanedResponsesPerRequest),
			slog.Int("max_segment_size", s.cfg.MaxSegmentSize),
		)
		return nil, fmt.Errorf("%w: segment %s exceeds %d bytes",
			domain.ErrUnableToCreateDataSegment, name, s.cfg.MaxSegmentSize)
	}
	size = max(size, flavor.minSegmentSize())

	segment, err := flavor.createSegment(s.cfg.SegmentDir, name, size)
	if err != nil {
		span.RecordError(err)
		serverCreateFailTotal.Add(ctx, 1, failed("data_segment"))
		logger.ErrorContext(ctx, "failed to create data segment",
			slog.String("segment", name),
			slog.Int("size", size),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	srv := &Server[F]{
		id:        id,
		service:   s,
		cfg:       cfg,
		segment:   segment,
		createdAt: s.cfg.Clock.Now(),
	}
	s.servers[id] = srv

	serversCreatedTotal.Add(ctx, 1, attrs)
	serversActive.Add(ctx, 1, attrs)
	logger.InfoContext(ctx, "server created",
		slog.String("server_id", id.String()),
		slog.String("segment", name),
		slog.Int("segment_size", size),
	)
	return srv, nil
}

func (s *Service[F]) detach(srv *Server[F]) {
	s.mu.Lock()
	delete(s.servers, srv.id)
	s.mu.Unlock()

	serversActive.Add(context.Background(), -1, metric.WithAttributes(s.metricAttrs()...))
}

func (s *Service[F]) metricAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service", s.cfg.Name.String()),
		attribute.String("locality", s.Locality().String()),
	}
}
