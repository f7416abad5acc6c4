// Package server provides the daemon lifecycle runner.
// cmd/ entrypoints delegate to server.Run for signal handling,
// config loading, observability init, health checks, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aelexs/shmport/internal/config"
	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/internal/observability"
)

// SetupDeps is what Run hands to a Setup hook.
type SetupDeps struct {
	Config     *config.Config
	Logger     *slog.Logger
	HTTPMux    *http.ServeMux
	GRPCServer *grpc.Server
}

// SetupFunc wires the daemon's components. The returned cleanup runs after
// both listeners stopped and before telemetry is flushed.
type SetupFunc func(ctx context.Context, deps SetupDeps) (cleanup func(context.Context) error, err error)

// Params configures the lifecycle runner.
type Params struct {
	// Name identifies the daemon in logs, health responses and telemetry.
	Name string

	// PortFromConfig extracts the HTTP port from config.
	PortFromConfig func(cfg *config.Config) int

	// GRPCPortFromConfig extracts the gRPC health port from config.
	// Nil disables the gRPC listener.
	GRPCPortFromConfig func(cfg *config.Config) int

	// Setup is optional.
	Setup SetupFunc
}

// Listeners lets callers inject pre-bound listeners (port-0 testing).
// Nil fields are bound from config.
type Listeners struct {
	HTTP net.Listener
	GRPC net.Listener
}

// Run executes the full daemon lifecycle: signal handling, config loading,
// observability initialization, the Setup hook, HTTP and gRPC health
// serving, and graceful shutdown.
func Run(ctx context.Context, p Params, ls Listeners) error {
	// Signal-based cancellation: ctx.Done() closes on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: p.Name,
		Environment: cfg.Environment,
	})

	// --- Startup order: telemetry -> setup -> listeners ---

	telemetry, err := observability.InitTelemetry(ctx, observability.TelemetryConfig{
		ServiceName:    p.Name,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	// Health check shutdown coordination via atomic flag.
	var shuttingDown atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"shutting_down","service":%q}`, p.Name)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q}`, p.Name)
	})

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	cleanup := func(context.Context) error { return nil }
	if p.Setup != nil {
		c, setupErr := p.Setup(ctx, SetupDeps{
			Config:     cfg,
			Logger:     logger,
			HTTPMux:    mux,
			GRPCServer: grpcServer,
		})
		if setupErr != nil {
			_ = telemetry.Shutdown(context.Background())
			return fmt.Errorf("setup: %w", setupErr)
		}
		if c != nil {
			cleanup = c
		}
	}

	httpLn, grpcLn, err := bindListeners(ctx, p, cfg, ls)
	if err != nil {
		_ = cleanup(context.Background())
		_ = telemetry.Shutdown(context.Background())
		return err
	}

	httpServer := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(p.Name, healthpb.HealthCheckResponse_SERVING)

	// --- Structured concurrency via errgroup ---
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server",
			slog.String("addr", httpLn.Addr().String()),
			slog.String("environment", cfg.Environment),
		)
		if serveErr := httpServer.Serve(httpLn); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})

	if grpcLn != nil {
		g.Go(func() error {
			logger.Info("starting gRPC server", slog.String("addr", grpcLn.Addr().String()))
			if serveErr := grpcServer.Serve(grpcLn); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
				return serveErr
			}
			return nil
		})
	}

	// Shutdown trigger: waits for context cancellation, then drains in
	// reverse startup order: listeners -> setup cleanup -> telemetry.
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("received shutdown signal, starting graceful shutdown")

		// 1. Mark shutting down: health checks report not serving
		shuttingDown.Store(true)
		healthServer.Shutdown()

		// 2. Drain delay, let load balancers propagate endpoint removal
		time.Sleep(domain.ShutdownDrainDelay)

		// 3. Drain listeners
		httpCtx, httpCancel := context.WithTimeout(context.Background(), domain.ShutdownHTTPTimeout)
		defer httpCancel()
		if shutdownErr := httpServer.Shutdown(httpCtx); shutdownErr != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", shutdownErr.Error()))
		}
		stopGRPC(httpCtx, grpcServer)

		// 4. Release what Setup opened
		if cleanupErr := cleanup(httpCtx); cleanupErr != nil {
			logger.Error("setup cleanup error", slog.String("error", cleanupErr.Error()))
		}

		// 5. Flush OTEL
		otelCtx, otelCancel := context.WithTimeout(context.Background(), domain.ShutdownOTELTimeout)
		defer otelCancel()
		if shutdownErr := telemetry.Shutdown(otelCtx); shutdownErr != nil {
			logger.Error("failed to shutdown telemetry", slog.String("error", shutdownErr.Error()))
		}

		logger.Info("shutdown complete")
		return nil
	})

	return g.Wait()
}

// bindListeners returns injected listeners or binds new ones from config.
// The gRPC listener is nil when neither is configured.
func bindListeners(ctx context.Context, p Params, cfg *config.Config, ls Listeners) (net.Listener, net.Listener, error) {
	lc := &net.ListenConfig{}

	httpLn := ls.HTTP
	if httpLn == nil {
		ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", p.PortFromConfig(cfg)))
		if err != nil {
			return nil, nil, fmt.Errorf("listen http: %w", err)
		}
		httpLn = ln
	}

	grpcLn := ls.GRPC
	if grpcLn == nil && p.GRPCPortFromConfig != nil {
		ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", p.GRPCPortFromConfig(cfg)))
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listen grpc: %w", err)
		}
		grpcLn = ln
	}

	return httpLn, grpcLn, nil
}

// stopGRPC drains in-flight RPCs until ctx expires, then forces a stop.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
		<-done
	}
}
