// File: cmd/hioload-http/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-http/internal/logger"
)

type rootOptions struct {
	logLevel string
	logJSON  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "hioload-http",
		Short: "Asynchronous HTTP/1.1 server on a shared worker pool.",
		Long: `hioload-http accepts TCP connections and serves HTTP/1.1 keep-alive
sessions. Completions of all connections run on one shared execution context
driven by a fixed pool of OS threads.

Settings default to the HIOLOAD_* environment variables; flags override them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logger.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			if os.Getenv("DEBUG") == "true" && !cmd.Flags().Changed("log-level") {
				level, _ = logger.ParseLevel("debug")
			}
			logger.Init(level, opts.logJSON, cmd.ErrOrStderr())
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON")
	cmd.AddCommand(newServeCmd())
	return cmd
}
