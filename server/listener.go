// File: server/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listener owns one listening socket and its accept loop. Accept
// completions run on the listener strand; each accepted connection gets a
// session on a strand of its own.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/internal/concurrency"
)

// Listener accepts connections for one bound endpoint.
type Listener struct {
	srv     *Server
	ln      net.Listener
	strand  *concurrency.Strand
	log     *slog.Logger
	handler api.Handler

	serving   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	done     chan struct{}
	doneOnce sync.Once
	errMu    sync.Mutex
	err      error
}

func newListener(srv *Server, ln net.Listener) *Listener {
	l := &Listener{
		srv:    srv,
		ln:     ln,
		strand: concurrency.NewStrand(srv.exec),
		log:    srv.log.With("listener", ln.Addr().String()),
		done:   make(chan struct{}),
	}
	// Stopping the executor unblocks a pending accept.
	context.AfterFunc(srv.exec.Context(), func() { _ = l.Close() })
	return l
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Done is closed when the accept loop has terminated.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Err returns the accept failure that ended the loop, if any.
func (l *Listener) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

// Serve starts the asynchronous accept loop. Every accepted connection is
// bound to handler. It returns immediately.
func (l *Listener) Serve(handler api.Handler) error {
	if handler == nil {
		return fmt.Errorf("serve: nil handler: %w", api.ErrInvalidArgument)
	}
	if l.closed.Load() {
		return api.ErrListenerClosed
	}
	if !l.serving.CompareAndSwap(false, true) {
		return fmt.Errorf("serve %s: already serving", l.Addr())
	}
	l.handler = handler
	l.srv.exec.WorkStarted()
	if err := l.strand.Post(l.accept); err != nil {
		l.srv.exec.WorkFinished()
		l.finish()
		return err
	}
	l.log.Info("listening")
	return nil
}

// accept arms one asynchronous accept. Runs on the listener strand and
// releases the work unit its poster took.
func (l *Listener) accept() {
	exec := l.srv.exec
	defer exec.WorkFinished()
	if l.closed.Load() || exec.Context().Err() != nil {
		l.log.Debug("accept loop stopped")
		l.finish()
		return
	}
	exec.WorkStarted()
	go func() {
		conn, err := l.ln.Accept()
		if perr := l.strand.Post(func() { l.onAccept(conn, err) }); perr != nil {
			if conn != nil {
				_ = conn.Close()
			}
			exec.WorkFinished()
		}
	}()
}

func (l *Listener) onAccept(conn net.Conn, err error) {
	exec := l.srv.exec
	defer exec.WorkFinished()
	if err != nil {
		if l.closed.Load() || exec.Context().Err() != nil {
			l.log.Debug("accept aborted", "error", err)
		} else {
			aerr := api.NewError(api.ErrCodeAccept, "accept", err)
			l.setErr(aerr)
			l.srv.report("accept", aerr)
		}
		l.finish()
		return
	}
	l.srv.startSession(conn, l.handler)

	exec.WorkStarted()
	l.accept()
}

func (l *Listener) setErr(err error) {
	l.errMu.Lock()
	l.err = err
	l.errMu.Unlock()
}

func (l *Listener) finish() {
	l.doneOnce.Do(func() { close(l.done) })
}

// Close stops accepting. Live sessions are not affected. Idempotent.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.closeErr = err
		}
		if !l.serving.Load() {
			l.finish()
		}
	})
	return l.closeErr
}
