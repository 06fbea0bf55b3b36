package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songrip/internal/server"
	"github.com/desertthunder/songrip/internal/shared"
)

// Serve starts the HTTP API and blocks until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", shared.ErrInvalidArgument, cfg.Port)
	}

	addr := cfg.Addr()
	r.writePlain("Listening on http://%s\n", addr)
	srv := server.NewServer(addr, r.engine(int(cmd.Int("concurrency"))), r.logger)
	return srv.ListenAndServe(ctx)
}
