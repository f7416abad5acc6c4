package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aelexs/shmport/internal/admin"
	"github.com/aelexs/shmport/internal/config"
	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/internal/server"
	"github.com/aelexs/shmport/internal/service"
)

// setup is the rrserverd composition root. It opens the configured service
// in its locality and mounts the admin API on the HTTP mux.
func setup(ctx context.Context, deps server.SetupDeps) (func(context.Context) error, error) {
	cfg := deps.Config

	locality, err := domain.ParseLocality(cfg.Service.Locality)
	if err != nil {
		return nil, fmt.Errorf("rrserverd setup: %w", err)
	}

	svcCfg, err := serviceConfig(cfg, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("rrserverd setup: %w", err)
	}

	switch locality {
	case domain.LocalityInterProcess:
		if err := os.MkdirAll(svcCfg.SegmentDir, 0o700); err != nil {
			return nil, fmt.Errorf("rrserverd setup: create segment dir: %w", err)
		}
		return mount[service.IPC](ctx, deps, svcCfg)
	case domain.LocalityIntraProcess:
		return mount[service.Local](ctx, deps, svcCfg)
	default:
		return nil, fmt.Errorf("rrserverd setup: %w", domain.ErrUnknownLocality)
	}
}

func mount[F service.Flavor](ctx context.Context, deps server.SetupDeps, svcCfg service.Config) (func(context.Context) error, error) {
	svc, err := service.New[F](svcCfg)
	if err != nil {
		return nil, fmt.Errorf("rrserverd setup: open service: %w", err)
	}

	handler := admin.NewHandler(svc, deps.Logger)
	handler.Register(deps.HTTPMux)

	deps.Logger.InfoContext(ctx, "service opened",
		slog.String("service_name", svc.Name().String()),
		slog.String("locality", svc.Locality().String()),
		slog.Int("max_servers", svc.MaxServers()),
	)

	cleanup := func(_ context.Context) error {
		return errors.Join(handler.Close(), svc.Close())
	}
	return cleanup, nil
}

// serviceConfig converts the validated daemon config into a service config.
func serviceConfig(cfg *config.Config, logger *slog.Logger) (service.Config, error) {
	name, err := domain.NewServiceName(cfg.Service.Name)
	if err != nil {
		return service.Config{}, err
	}
	allocation, err := domain.ParseAllocationStrategy(cfg.Service.AllocationStrategy)
	if err != nil {
		return service.Config{}, err
	}
	delivery, err := domain.ParseUnableToDeliverStrategy(cfg.Service.UnableToDeliverStrategy)
	if err != nil {
		return service.Config{}, err
	}

	return service.Config{
		Name:                         name,
		MaxServers:                   cfg.Service.MaxServers,
		MaxLoanedResponsesPerRequest: cfg.Service.MaxLoanedResponsesPerRequest,
		InitialMaxSliceLen:           cfg.Service.InitialMaxSliceLen,
		AllocationStrategy:           allocation,
		UnableToDeliverStrategy:      delivery,
		ResponseElementSize:          cfg.SHM.ElementSize,
		MaxSegmentSize:               cfg.SHM.MaxSegmentSize,
		SegmentDir:                   cfg.SHM.Dir,
		SegmentPrefix:                cfg.SHM.SegmentPrefix,
		Logger:                       logger,
	}, nil
}
