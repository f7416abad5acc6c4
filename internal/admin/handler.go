// Package admin serves the rrserverd HTTP API for creating, inspecting
// and dropping server ports on the daemon's service.
package admin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/internal/errmap"
	"github.com/aelexs/shmport/internal/observability"
	"github.com/aelexs/shmport/internal/service"
	"github.com/aelexs/shmport/pkg/capi"
	"github.com/aelexs/shmport/pkg/protocol"
)

// Handler owns the server handles created through the API. Server handles
// are not safe for concurrent use, so every access goes through mu.
type Handler[F service.Flavor] struct {
	svc     *service.Service[F]
	factory capi.PortFactory
	logger  *slog.Logger

	mu      sync.Mutex
	servers map[string]capi.ServerHandle
}

// NewHandler creates a Handler for svc.
func NewHandler[F service.Flavor](svc *service.Service[F], logger *slog.Logger) *Handler[F] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler[F]{
		svc:     svc,
		factory: capi.NewPortFactory(svc),
		logger:  logger.With(slog.String("component", "admin")),
		servers: make(map[string]capi.ServerHandle),
	}
}

// Register mounts the API routes on mux.
func (h *Handler[F]) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/servers", h.createServer)
	mux.HandleFunc("GET /v1/servers", h.listServers)
	mux.HandleFunc("GET /v1/servers/{id}", h.getServer)
	mux.HandleFunc("DELETE /v1/servers/{id}", h.dropServer)
}

// Close drops every server created through the handler.
func (h *Handler[F]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for id, handle := range h.servers {
		if err := capi.ServerDrop(handle); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(h.servers, id)
	}
	return firstErr
}

func (h *Handler[F]) createServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.WithTraceID(ctx, h.logger)

	req, err := protocol.DecodeCreateServerRequest(r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	builder := capi.PortFactoryRequestResponseServerBuilder(h.factory, nil)
	if err := configure(&builder, req); err != nil {
		capi.PortFactoryServerBuilderDrop(builder)
		h.writeError(w, r, err)
		return
	}

	var handle capi.ServerHandle
	if rc := capi.PortFactoryServerBuilderCreate(builder, nil, &handle); rc != capi.OK {
		code := capi.ServerCreateError(rc)
		if domain.IsCapacityExhausted(code) {
			logger.WarnContext(ctx, "server creation rejected", slog.String("reason", code.String()))
		} else {
			logger.ErrorContext(ctx, "server creation failed", slog.String("reason", code.String()))
		}
		h.writeError(w, r, code)
		return
	}

	h.mu.Lock()
	id := capi.ServerID(&handle)
	h.servers[id] = handle
	info, err := h.describe(id, &handle)
	h.mu.Unlock()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logger.InfoContext(ctx, "server created via admin", slog.String("server_id", id))
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler[F]) listServers(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := protocol.ServerList{
		Servers:    []protocol.ServerInfo{},
		MaxServers: h.svc.MaxServers(),
	}
	for _, srv := range h.svc.Servers() {
		id := srv.ID().String()
		handle, ok := h.servers[id]
		if !ok {
			continue
		}
		info, err := h.describe(id, &handle)
		if err != nil {
			if !domain.IsNotFound(err) {
				h.logger.ErrorContext(r.Context(), "failed to describe server",
					slog.String("server_id", id),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		list.Servers = append(list.Servers, info)
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *Handler[F]) getServer(w http.ResponseWriter, r *http.Request) {
	id, err := serverIDFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	handle, ok := h.servers[id]
	if !ok {
		h.writeError(w, r, fmt.Errorf("server %s: %w", id, domain.ErrNotFound))
		return
	}
	info, err := h.describe(id, &handle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler[F]) dropServer(w http.ResponseWriter, r *http.Request) {
	id, err := serverIDFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.mu.Lock()
	handle, ok := h.servers[id]
	delete(h.servers, id)
	h.mu.Unlock()

	if !ok {
		h.writeError(w, r, fmt.Errorf("server %s: %w", id, domain.ErrNotFound))
		return
	}
	if err := capi.ServerDrop(handle); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to release server segment",
			slog.String("server_id", id),
			slog.String("error", err.Error()),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

// describe combines what the server handle reports with the segment and
// timestamps the service keeps. Callers hold mu.
func (h *Handler[F]) describe(id string, handle capi.ServerHandleRef) (protocol.ServerInfo, error) {
	sid, err := domain.NewServerID(id)
	if err != nil {
		return protocol.ServerInfo{}, err
	}
	srv, err := h.svc.Server(sid)
	if err != nil {
		return protocol.ServerInfo{}, err
	}

	cfg := srv.Config()
	return protocol.ServerInfo{
		ID:                           id,
		ServiceName:                  srv.ServiceName().String(),
		Locality:                     capi.ServerServiceType(handle).Locality().String(),
		AllocationStrategy:           cfg.AllocationStrategy.String(),
		InitialMaxSliceLen:           capi.ServerInitialMaxSliceLen(handle),
		MaxLoanedResponsesPerRequest: capi.ServerMaxLoanedResponsesPerRequest(handle),
		UnableToDeliverStrategy:      cfg.UnableToDeliverStrategy.String(),
		Segment:                      srv.Segment().Name(),
		SegmentSize:                  srv.Segment().Size(),
		CreatedAt:                    domain.UnixMillis(srv.CreatedAt()),
	}, nil
}

// configure applies the request to the builder in a fixed order.
func configure(builder capi.PortFactoryServerBuilderHandleRef, req protocol.CreateServerRequest) error {
	if req.AllocationStrategy != nil {
		s, err := domain.ParseAllocationStrategy(*req.AllocationStrategy)
		if err != nil {
			return err
		}
		capi.PortFactoryServerBuilderSetAllocationStrategy(builder, allocationStrategies[s])
	}
	if req.InitialMaxSliceLen != nil {
		capi.PortFactoryServerBuilderSetInitialMaxSliceLen(builder, *req.InitialMaxSliceLen)
	}
	if req.MaxLoanedResponsesPerRequest != nil {
		capi.PortFactoryServerBuilderSetMaxLoanedResponsesPerRequest(builder, *req.MaxLoanedResponsesPerRequest)
	}
	if req.UnableToDeliverStrategy != nil {
		s, err := domain.ParseUnableToDeliverStrategy(*req.UnableToDeliverStrategy)
		if err != nil {
			return err
		}
		capi.PortFactoryServerBuilderUnableToDeliverStrategy(builder, unableToDeliverStrategies[s])
	}
	return nil
}

var allocationStrategies = map[domain.AllocationStrategy]capi.AllocationStrategy{
	domain.AllocationStrategyBestFit:    capi.AllocationStrategyBestFit,
	domain.AllocationStrategyPowerOfTwo: capi.AllocationStrategyPowerOfTwo,
	domain.AllocationStrategyStatic:     capi.AllocationStrategyStatic,
}

var unableToDeliverStrategies = map[domain.UnableToDeliverStrategy]capi.UnableToDeliverStrategy{
	domain.UnableToDeliverBlock:         capi.UnableToDeliverStrategyBlock,
	domain.UnableToDeliverDiscardSample: capi.UnableToDeliverStrategyDiscardSample,
}

func serverIDFromPath(r *http.Request) (string, error) {
	id, err := domain.NewServerID(r.PathValue("id"))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// retryAfterSeconds is advertised on creation failures that may succeed
// once another server is dropped.
const retryAfterSeconds = "1"

func (h *Handler[F]) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := errmap.ToHTTPError(err)
	switch {
	case domain.IsClientError(err):
		h.logger.DebugContext(r.Context(), "request rejected",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	case httpErr.StatusCode == http.StatusInternalServerError:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	if domain.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, httpErr.StatusCode, protocol.Error{
		Code:    httpErr.Code,
		Message: httpErr.Message,
	})
}
