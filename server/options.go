// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package server defines functional options for the Server facade.

package server

import (
	"log/slog"
	"time"

	"github.com/momentics/hioload-http/api"
)

// Option customizes server initialization.
type Option func(*Server)

// WithThreads sets the worker thread count.
func WithThreads(n int) Option {
	return func(s *Server) {
		s.cfg.Threads = n
	}
}

// WithIdleTimeout overrides the keep-alive idle timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.cfg.IdleTimeout = d
	}
}

// WithDispatchTimeout bounds how long a handler may take to emit.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.cfg.DispatchTimeout = d
	}
}

// WithMaxConnections caps concurrently served connections.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.cfg.MaxConnections = n
	}
}

// WithMaxHeaderBytes limits the request line plus header block.
func WithMaxHeaderBytes(n int) Option {
	return func(s *Server) {
		s.cfg.MaxHeaderBytes = n
	}
}

// WithMaxBodyBytes limits decoded request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.cfg.MaxBodyBytes = n
	}
}

// WithCPUPinning pins worker threads to CPUs.
func WithCPUPinning(enabled bool) Option {
	return func(s *Server) {
		s.cfg.CPUPinning = enabled
	}
}

// WithErrorReporter replaces the logging reporter.
func WithErrorReporter(r api.ErrorReporter) Option {
	return func(s *Server) {
		s.reporter = r
	}
}

// WithStateObserver receives every session state transition.
func WithStateObserver(o api.StateObserver) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithLogger sets the logger used by the server and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}
