// File: internal/session/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection state machine.

package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/internal/concurrency"
	"github.com/momentics/hioload-http/internal/transport"
	"github.com/momentics/hioload-http/protocol"
)

// Session owns one connection. Fields below the strand are only touched from
// strand callbacks.
type Session struct {
	id      string
	conn    net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	strand  *concurrency.Strand
	exec    api.Executor
	handler api.Handler
	opts    Options
	log     *slog.Logger

	published atomic.Int32 // mirror of state for readers off the strand
	started   atomic.Bool

	state        api.State
	aborted      bool
	dispatchSeq  uint64
	failedSeq    uint64 // dispatch ended by a handler panic
	stopDispatch func() bool
	stopWake     func() bool
}

type readResult struct {
	req *protocol.Request
	err error
}

// New binds conn to a fresh session running on strand.
func New(conn net.Conn, strand *concurrency.Strand, handler api.Handler, opts Options) *Session {
	o := opts.withDefaults()
	id := uuid.NewString()
	s := &Session{
		id:      id,
		conn:    conn,
		br:      bufio.NewReaderSize(conn, 4096),
		bw:      bufio.NewWriterSize(conn, 4096),
		strand:  strand,
		exec:    strand.Executor(),
		handler: handler,
		opts:    o,
		log:     o.Logger.With("session", id, "remote", conn.RemoteAddr().String()),
		state:   api.StateIdle,
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// State returns the last published state. Safe from any goroutine.
func (s *Session) State() api.State { return api.State(s.published.Load()) }

// Start schedules the first read. It must be called once.
func (s *Session) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s: already started", s.id)
	}
	// Stopping the executor interrupts any blocked read or write.
	s.stopWake = context.AfterFunc(s.exec.Context(), func() {
		transport.Interrupt(s.conn)
	})
	s.exec.WorkStarted()
	if err := s.strand.Post(s.beginRead); err != nil {
		s.exec.WorkFinished()
		s.stopWake()
		_ = s.conn.Close()
		return err
	}
	return nil
}

// Abort moves the session towards Closing as part of shutdown.
func (s *Session) Abort() {
	if err := s.strand.Post(s.abort); err != nil {
		transport.Interrupt(s.conn)
	}
}

func (s *Session) abort() {
	s.aborted = true
	switch s.state {
	case api.StateIdle:
		s.close()
	case api.StateReading, api.StateWriting:
		transport.Interrupt(s.conn)
	case api.StateDispatching:
		s.log.Debug("dispatch aborted")
		s.endDispatch()
		s.close()
	}
}

func (s *Session) setState(to api.State) bool {
	from := s.state
	if !api.CanTransition(from, to) {
		s.log.Warn("illegal state transition", "from", from, "to", to)
		return false
	}
	s.state = to
	s.published.Store(int32(to))
	if s.opts.Observer != nil {
		s.opts.Observer(s.id, from, to)
	}
	return true
}

// beginRead runs on the strand to enter Reading. The caller passed one unit
// of outstanding work, released here.
func (s *Session) beginRead() {
	defer s.exec.WorkFinished()
	if s.aborted || s.exec.Context().Err() != nil {
		s.close()
		return
	}
	if !s.setState(api.StateReading) {
		s.close()
		return
	}

	var deadline time.Time
	if s.opts.IdleTimeout > 0 {
		deadline = time.Now().Add(s.opts.IdleTimeout)
	}
	_ = s.conn.SetReadDeadline(deadline)
	// A stop that landed before the deadline was replaced must still win.
	if s.exec.Context().Err() != nil {
		s.log.Debug("read aborted before start")
		s.close()
		return
	}

	s.exec.WorkStarted()
	go func() {
		req, err := protocol.ReadRequest(s.br, s.opts.Limits)
		res := readResult{req: req, err: err}
		if perr := s.strand.Post(func() { s.onRead(res) }); perr != nil {
			s.exec.WorkFinished()
		}
	}()
}

func (s *Session) onRead(res readResult) {
	defer s.exec.WorkFinished()
	if res.err != nil {
		s.failRead(res.err)
		return
	}
	req := res.req
	req.RemoteAddr = s.conn.RemoteAddr().String()
	s.count("requests.total", 1)
	s.dispatch(req)
}

func (s *Session) failRead(err error) {
	switch {
	case s.isAborted():
		s.log.Debug("read aborted", "error", err)
	case errors.Is(err, io.EOF):
		s.log.Debug("peer closed connection")
	case isTimeout(err):
		s.report("read", api.NewError(api.ErrCodeTimeout, "read", err))
	case protocol.IsParseError(err):
		s.report("read", api.NewError(api.ErrCodeProtocol, "read", err))
	default:
		s.report("read", api.NewError(api.ErrCodeRead, "read", err))
	}
	s.close()
}

func (s *Session) dispatch(req *protocol.Request) {
	if !s.setState(api.StateDispatching) {
		s.close()
		return
	}
	s.dispatchSeq++
	seq := s.dispatchSeq
	s.exec.WorkStarted()
	if s.opts.DispatchTimeout > 0 {
		s.stopDispatch = s.strand.AfterFunc(s.opts.DispatchTimeout, func() {
			s.onDispatchTimeout(seq)
		})
	}

	var once atomic.Bool
	emit := func(resp *protocol.Response) {
		if !once.CompareAndSwap(false, true) {
			s.report("emit", api.NewError(api.ErrCodeContract, "emit", api.ErrDuplicateEmit))
			return
		}
		if err := s.strand.Post(func() { s.onEmit(seq, resp) }); err != nil {
			s.log.Debug("emit after executor stopped", "error", err)
		}
	}

	if err := s.invoke(req, emit); err != nil {
		s.report("dispatch", err)
		s.failedSeq = seq
		if s.state == api.StateDispatching && s.dispatchSeq == seq {
			s.endDispatch()
			s.close()
		}
	}
}

func (s *Session) invoke(req *protocol.Request, emit api.Emitter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = api.NewError(api.ErrCodeInternal, "dispatch", fmt.Errorf("handler panic: %v", r))
		}
	}()
	s.handler.ServeRequest(req, emit)
	return nil
}

// endDispatch releases the dispatch work unit and its timer.
func (s *Session) endDispatch() {
	if s.stopDispatch != nil {
		s.stopDispatch()
		s.stopDispatch = nil
	}
	s.dispatchSeq++
	s.exec.WorkFinished()
}

func (s *Session) onDispatchTimeout(seq uint64) {
	if s.state != api.StateDispatching || s.dispatchSeq != seq {
		return
	}
	s.stopDispatch = nil
	s.report("dispatch", api.NewError(api.ErrCodeTimeout, "dispatch",
		fmt.Errorf("no response within %s", s.opts.DispatchTimeout)))
	s.endDispatch()
	s.close()
}

func (s *Session) onEmit(seq uint64, resp *protocol.Response) {
	if seq == s.failedSeq {
		s.log.Debug("response dropped after handler panic")
		return
	}
	if s.state != api.StateDispatching || s.dispatchSeq != seq {
		s.report("emit", api.NewError(api.ErrCodeContract, "emit", api.ErrDuplicateEmit))
		return
	}
	s.endDispatch()
	if resp == nil {
		s.report("emit", api.NewError(api.ErrCodeContract, "emit",
			fmt.Errorf("nil response: %w", api.ErrInvalidArgument)))
		s.close()
		return
	}
	s.write(resp)
}

func (s *Session) write(resp *protocol.Response) {
	if !s.setState(api.StateWriting) {
		s.close()
		return
	}
	if s.aborted || s.exec.Context().Err() != nil {
		s.log.Debug("write aborted before start")
		s.close()
		return
	}
	closeAfter := resp.CloseAfterSend()
	s.exec.WorkStarted()
	go func() {
		err := protocol.WriteResponse(s.bw, resp)
		if perr := s.strand.Post(func() { s.onWrite(err, closeAfter) }); perr != nil {
			s.exec.WorkFinished()
		}
	}()
}

func (s *Session) onWrite(err error, closeAfter bool) {
	defer s.exec.WorkFinished()
	if err != nil {
		if s.isAborted() {
			s.log.Debug("write aborted", "error", err)
		} else {
			s.report("write", api.NewError(api.ErrCodeWrite, "write", err))
		}
		s.close()
		return
	}
	s.count("responses.total", 1)
	if closeAfter {
		s.close()
		return
	}
	// Hand the work unit over to the next read.
	s.exec.WorkStarted()
	s.beginRead()
}

// close walks Closing and Terminated. Only called when no read or write is
// in flight.
func (s *Session) close() {
	if s.state == api.StateClosing || s.state == api.StateTerminated {
		return
	}
	s.setState(api.StateClosing)
	_ = transport.CloseWrite(s.conn)

	if s.stopWake != nil {
		s.stopWake()
	}
	_ = s.conn.Close()
	s.setState(api.StateTerminated)
	if s.opts.OnTerminate != nil {
		s.opts.OnTerminate(s)
	}
}

// isAborted reports whether the last failure was caused by shutdown.
func (s *Session) isAborted() bool {
	return s.aborted || s.exec.Context().Err() != nil
}

func (s *Session) report(op string, err error) {
	s.count("errors."+op, 1)
	s.opts.Reporter.ReportError(op, err)
}

func (s *Session) count(key string, delta int64) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.Add(key, delta)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
