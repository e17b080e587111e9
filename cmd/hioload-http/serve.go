// File: cmd/hioload-http/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/handlers"
	"github.com/momentics/hioload-http/internal/logger"
	"github.com/momentics/hioload-http/server"
)

type serveOptions struct {
	addr            string
	port            int
	threads         int
	idleTimeout     time.Duration
	dispatchTimeout time.Duration
	maxConnections  int
	handler         string
	cpuPinning      bool
}

func newServeCmd() *cobra.Command {
	def := server.DefaultConfig()
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bind the listen address and serve until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := server.LoadFromEnv()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			h, ok := handlers.ByName(opts.handler)
			if !ok {
				return fmt.Errorf("unknown handler %q (want hello or echo)", opts.handler)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, h)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", def.Address, "listen IP address")
	f.IntVar(&opts.port, "port", def.Port, "listen port")
	f.IntVar(&opts.threads, "threads", def.Threads, "worker threads")
	f.DurationVar(&opts.idleTimeout, "idle-timeout", def.IdleTimeout, "keep-alive idle timeout")
	f.DurationVar(&opts.dispatchTimeout, "dispatch-timeout", def.DispatchTimeout, "handler response timeout (0 disables)")
	f.IntVar(&opts.maxConnections, "max-connections", def.MaxConnections, "concurrent connection cap (0 = unlimited)")
	f.StringVar(&opts.handler, "handler", "hello", "request handler: hello or echo")
	f.BoolVar(&opts.cpuPinning, "cpu-pinning", def.CPUPinning, "pin worker threads to CPUs")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (o *serveOptions) apply(cmd *cobra.Command, cfg *server.Config) {
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Address = o.addr
	}
	if f.Changed("port") {
		cfg.Port = o.port
	}
	if f.Changed("threads") {
		cfg.Threads = o.threads
	}
	if f.Changed("idle-timeout") {
		cfg.IdleTimeout = o.idleTimeout
	}
	if f.Changed("dispatch-timeout") {
		cfg.DispatchTimeout = o.dispatchTimeout
	}
	if f.Changed("max-connections") {
		cfg.MaxConnections = o.maxConnections
	}
	if f.Changed("cpu-pinning") {
		cfg.CPUPinning = o.cpuPinning
	}
}

func run(ctx context.Context, cfg *server.Config, h api.Handler) error {
	srv := server.New(cfg,
		server.WithLogger(logger.L()),
		server.WithErrorReporter(server.LogrReporter(logger.Logr().WithName("session"))),
	)
	logger.Info("asynchronous server starting",
		"addr", cfg.Address, "port", cfg.Port, "threads", max(1, cfg.Threads))
	if err := srv.ListenAndServe(ctx, h); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
	logger.Info("shutting down", "stats", srv.Stats())
	return nil
}
