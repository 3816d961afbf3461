package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/biy/internal/server"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the mock analysis server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.serverConfig(cmd)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := shared.WithLogger(r.logger, "component", "server")
	r.logger.Info("starting mock analysis server", "addr", cfg.Addr(), "origin", cfg.AllowedOrigin, "rate", cfg.EventsPerSecond)

	return server.New(cfg, server.EchoEngine{}, logger).ListenAndServe(ctx)
}

// serverConfig applies command-line overrides to the configured server settings.
func (r *Runner) serverConfig(cmd *cli.Command) shared.ServerConfig {
	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("allowed-origin") {
		cfg.AllowedOrigin = cmd.String("allowed-origin")
	}
	if cmd.IsSet("rate") {
		cfg.EventsPerSecond = cmd.Float("rate")
	}
	return cfg
}
