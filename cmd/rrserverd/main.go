// Package main is the entrypoint for rrserverd, the daemon that hosts
// request/response server ports for one shared-memory service and exposes
// an admin API to create and drop them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aelexs/shmport/internal/config"
	"github.com/aelexs/shmport/internal/server"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:               "rrserverd",
		PortFromConfig:     func(cfg *config.Config) int { return cfg.HTTP.Port },
		GRPCPortFromConfig: func(cfg *config.Config) int { return cfg.GRPC.Port },
		Setup:              setup,
	}, server.Listeners{})
}
