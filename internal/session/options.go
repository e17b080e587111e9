// File: internal/session/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"log/slog"
	"time"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/internal/logger"
	"github.com/momentics/hioload-http/protocol"
)

// DefaultIdleTimeout bounds the wait for the next request on a connection.
const DefaultIdleTimeout = 30 * time.Second

// Counter receives session metrics.
type Counter interface {
	Add(key string, delta int64)
}

// Options configure a Session. Zero values fall back to defaults.
type Options struct {
	// IdleTimeout is armed on every entry to Reading. Negative disables it.
	IdleTimeout time.Duration
	// DispatchTimeout bounds the wait for emit; 0 disables it.
	DispatchTimeout time.Duration
	Limits          protocol.Limits

	Reporter    api.ErrorReporter
	Observer    api.StateObserver
	OnTerminate func(*Session)
	Metrics     Counter
	Logger      *slog.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.IdleTimeout == 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.Limits.MaxHeaderBytes <= 0 {
		out.Limits.MaxHeaderBytes = protocol.DefaultLimits.MaxHeaderBytes
	}
	if out.Limits.MaxBodyBytes <= 0 {
		out.Limits.MaxBodyBytes = protocol.DefaultLimits.MaxBodyBytes
	}
	if out.Reporter == nil {
		out.Reporter = api.ReporterFunc(func(string, error) {})
	}
	if out.Logger == nil {
		out.Logger = logger.L()
	}
	return out
}
