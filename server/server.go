// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server facade: one shared executor, a fixed pool of worker threads,
// any number of listeners and the registry of live sessions.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/control"
	"github.com/momentics/hioload-http/internal/concurrency"
	"github.com/momentics/hioload-http/internal/logger"
	"github.com/momentics/hioload-http/internal/session"
	"github.com/momentics/hioload-http/internal/transport"
	"github.com/momentics/hioload-http/protocol"
)

// Live setting keys accepted by Settings().SetConfig. Changes apply to
// connections accepted afterwards.
const (
	SettingIdleTimeout     = "idle_timeout"
	SettingDispatchTimeout = "dispatch_timeout"
)

// Server runs HTTP/1.1 sessions on a shared execution context.
type Server struct {
	cfg      *Config
	exec     *concurrency.Executor
	sessions *session.Registry
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	settings *control.ConfigStore
	reporter api.ErrorReporter
	observer api.StateObserver
	log      *slog.Logger

	mu        sync.Mutex
	listeners []*Listener
	stopOnce  sync.Once
}

// New builds the Server facade. A nil cfg means DefaultConfig.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	s := &Server{
		cfg:      &c,
		sessions: session.NewRegistry(0),
		metrics:  control.NewMetricsRegistry(),
		probes:   control.NewDebugProbes(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.L()
	}
	if s.reporter == nil {
		s.reporter = LogReporter(s.log)
	}
	s.exec = concurrency.NewExecutor(concurrency.WithPanicHandler(func(r any) {
		s.log.Error("task panicked", "panic", r)
	}))
	s.settings = control.NewConfigStore(map[string]any{
		SettingIdleTimeout:     s.cfg.IdleTimeout,
		SettingDispatchTimeout: s.cfg.DispatchTimeout,
	})
	s.settings.OnReload(func(changed []string) {
		s.log.Info("settings reloaded", "keys", changed)
	})

	control.RegisterPlatformProbes(s.probes)
	s.probes.RegisterProbe("executor.stats", func() any { return s.exec.Stats() })
	s.probes.RegisterProbe("sessions.active", func() any { return s.sessions.Len() })
	s.probes.RegisterProbe("listeners", func() any { return s.listenerAddrs() })
	s.probes.RegisterProbe("settings", func() any { return s.settings.GetSnapshot() })
	return s
}

// Config returns a copy of the effective configuration.
func (s *Server) Config() Config {
	return *s.cfg
}

// Bind opens a listening socket on address:port. Failures satisfy
// api.IsBindError. Port 0 binds an ephemeral port, see Listener.Addr.
func (s *Server) Bind(address string, port int) (*Listener, error) {
	if s.exec.Stopped() {
		return nil, api.NewError(api.ErrCodeBind, "bind", api.ErrExecutorClosed)
	}
	ln, err := transport.Listen(context.Background(), address, port, transport.ListenConfig{
		ReuseAddr:      s.cfg.ReuseAddr,
		MaxConnections: s.cfg.MaxConnections,
	})
	if err != nil {
		return nil, err
	}
	l := newListener(s, ln)
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	return l, nil
}

// Serve starts accept loops on every bound listener that is not serving yet.
func (s *Server) Serve(handler api.Handler) error {
	s.mu.Lock()
	ls := append([]*Listener(nil), s.listeners...)
	s.mu.Unlock()
	if len(ls) == 0 {
		return fmt.Errorf("serve: no listener bound: %w", api.ErrInvalidArgument)
	}
	for _, l := range ls {
		if l.serving.Load() {
			continue
		}
		if err := l.Serve(handler); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the worker pool on the calling goroutine. It blocks until
// Shutdown has been called and every in-flight operation has unwound.
func (s *Server) Run() {
	var opts []concurrency.PoolOption
	if s.cfg.CPUPinning {
		opts = append(opts, concurrency.WithCPUPinning(func(worker int, err error) {
			s.log.Warn("cpu pinning failed", "worker", worker, "error", err)
		}))
	}
	s.log.Info("worker pool started", "threads", max(1, s.cfg.Threads))
	concurrency.RunPool(s.cfg.Threads, s.exec.Run, opts...)
	s.log.Info("worker pool stopped")
}

// Shutdown stops the execution context, closes every listener and aborts
// live sessions. Run returns once they have unwound. Idempotent.
func (s *Server) Shutdown() error {
	var errs []error
	s.stopOnce.Do(func() {
		s.log.Info("shutting down", "sessions", s.sessions.Len())
		s.exec.Stop()
		s.mu.Lock()
		ls := append([]*Listener(nil), s.listeners...)
		s.mu.Unlock()
		for _, l := range ls {
			if err := l.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.sessions.Range(func(sess *session.Session) { sess.Abort() })
	})
	return errors.Join(errs...)
}

// ListenAndServe binds the configured endpoint, serves handler and runs the
// worker pool until ctx is done or the accept loop fails.
func (s *Server) ListenAndServe(ctx context.Context, handler api.Handler) error {
	l, err := s.Bind(s.cfg.Address, s.cfg.Port)
	if err != nil {
		return err
	}
	if err := l.Serve(handler); err != nil {
		_ = s.Shutdown()
		return err
	}
	stopCtx := context.AfterFunc(ctx, func() { _ = s.Shutdown() })
	defer stopCtx()
	go func() {
		<-l.Done()
		_ = s.Shutdown()
	}()

	s.Run()
	return l.Err()
}

// Settings exposes live tunables.
func (s *Server) Settings() *control.ConfigStore {
	return s.settings
}

// Stats returns a snapshot of server counters.
func (s *Server) Stats() map[string]any {
	return s.metrics.GetSnapshot()
}

// DumpState evaluates every debug probe.
func (s *Server) DumpState() map[string]any {
	return s.probes.DumpState()
}

// ActiveSessions returns the number of live sessions.
func (s *Server) ActiveSessions() int {
	return s.sessions.Len()
}

func (s *Server) report(op string, err error) {
	s.metrics.Add(control.MetricErrorsPrefix+op, 1)
	s.reporter.ReportError(op, err)
}

func (s *Server) sessionOptions() session.Options {
	return session.Options{
		IdleTimeout:     s.settings.Duration(SettingIdleTimeout, s.cfg.IdleTimeout),
		DispatchTimeout: s.settings.Duration(SettingDispatchTimeout, s.cfg.DispatchTimeout),
		Limits: protocol.Limits{
			MaxHeaderBytes: s.cfg.MaxHeaderBytes,
			MaxBodyBytes:   s.cfg.MaxBodyBytes,
		},
		Reporter:    s.reporter,
		Observer:    s.observer,
		Metrics:     s.metrics,
		Logger:      s.log,
		OnTerminate: s.onTerminate,
	}
}

func (s *Server) startSession(conn net.Conn, handler api.Handler) {
	s.metrics.Add(control.MetricConnAccepted, 1)
	s.metrics.Add(control.MetricConnActive, 1)

	sess := session.New(conn, concurrency.NewStrand(s.exec), handler, s.sessionOptions())
	s.sessions.Add(sess)
	if err := sess.Start(); err != nil {
		s.sessions.Remove(sess.ID())
		s.metrics.Add(control.MetricConnActive, -1)
		s.log.Debug("session not started", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	s.log.Debug("session started", "session", sess.ID(), "remote", conn.RemoteAddr().String())
	if s.exec.Stopped() {
		sess.Abort()
	}
}

func (s *Server) onTerminate(sess *session.Session) {
	s.sessions.Remove(sess.ID())
	s.metrics.Add(control.MetricConnActive, -1)
	s.metrics.Set("sessions.last_terminated", time.Now())
}

func (s *Server) listenerAddrs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l.Addr().String())
	}
	return out
}
