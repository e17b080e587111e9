package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-http/api"
	"github.com/momentics/hioload-http/control"
	"github.com/momentics/hioload-http/protocol"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type reports struct {
	mu  sync.Mutex
	ops []string
	err []error
}

func (r *reports) ReportError(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	r.err = append(r.err, err)
}

func (r *reports) snapshot() ([]string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...), append([]error(nil), r.err...)
}

var hello = api.HandlerFunc(func(req *protocol.Request, emit api.Emitter) {
	resp := protocol.NewResponse(req, http.StatusOK)
	resp.SetBody("text/plain", []byte("hi "+req.Target))
	emit(resp)
})

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.Threads = 2
	return cfg
}

func startServer(t *testing.T, h api.Handler, opts ...Option) (*Server, *Listener) {
	t.Helper()
	s := New(testConfig(), append([]Option{WithLogger(quiet)}, opts...)...)
	l, err := s.Bind("127.0.0.1", 0)
	require.NoError(t, err)
	require.NoError(t, s.Serve(h))

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	t.Cleanup(func() {
		_ = s.Shutdown()
		waitFor(t, done, "worker pool")
	})
	return s, l
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestServesStandardClientWithKeepAlive(t *testing.T) {
	s, l := startServer(t, hello)
	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	for _, path := range []string{"/a", "/b", "/c"} {
		resp, err := client.Get("http://" + l.Addr().String() + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "hi "+path, string(body))
	}

	stats := s.Stats()
	assert.EqualValues(t, 3, stats[control.MetricRequests])
	assert.EqualValues(t, 1, stats[control.MetricConnAccepted], "keep-alive must reuse the connection")
	assert.Equal(t, 1, s.ActiveSessions())
}

func TestBindFailures(t *testing.T) {
	s := New(testConfig(), WithLogger(quiet))
	l, err := s.Bind("127.0.0.1", 0)
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port

	_, err = s.Bind("127.0.0.1", port)
	assert.True(t, api.IsBindError(err), "address in use: %v", err)
	_, err = s.Bind("999.0.0.1", 80)
	assert.True(t, api.IsBindError(err))

	require.NoError(t, s.Shutdown())
	_, err = s.Bind("127.0.0.1", 0)
	assert.True(t, api.IsBindError(err))
	s.Run()
}

func TestServeRequiresListener(t *testing.T) {
	s := New(testConfig(), WithLogger(quiet))
	assert.ErrorIs(t, s.Serve(hello), api.ErrInvalidArgument)

	l, err := s.Bind("127.0.0.1", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, l.Serve(nil), api.ErrInvalidArgument)
	require.NoError(t, s.Shutdown())
	assert.ErrorIs(t, l.Serve(hello), api.ErrListenerClosed)
	s.Run()
}

func TestShutdownDrainsIdleSessions(t *testing.T) {
	rep := &reports{}
	s := New(testConfig(), WithLogger(quiet), WithErrorReporter(rep))
	l, err := s.Bind("127.0.0.1", 0)
	require.NoError(t, err)
	require.NoError(t, s.Serve(hello))
	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.ActiveSessions() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Shutdown())
	waitFor(t, done, "worker pool")
	waitFor(t, l.Done(), "accept loop")

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, s.ActiveSessions())
	assert.EqualValues(t, 0, s.Stats()[control.MetricConnActive])
	ops, _ := rep.snapshot()
	assert.Empty(t, ops, "shutdown must not report aborted operations")
}

func TestShutdownAbortsStuckHandler(t *testing.T) {
	entered := make(chan struct{}, 1)
	s, l := startServer(t, api.HandlerFunc(func(*protocol.Request, api.Emitter) {
		entered <- struct{}{}
	}))

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	waitFor(t, entered, "dispatch")

	require.NoError(t, s.Shutdown())
	require.Eventually(t, func() bool { return s.ActiveSessions() == 0 }, 5*time.Second, 5*time.Millisecond)
}

type failingListener struct {
	addr   net.Addr
	closed chan struct{}
	once   sync.Once
}

func (f *failingListener) Accept() (net.Conn, error) { return nil, errors.New("too many open files") }
func (f *failingListener) Addr() net.Addr { return f.addr }
func (f *failingListener) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func TestAcceptFailureStopsLoop(t *testing.T) {
	rep := &reports{}
	s := New(testConfig(), WithLogger(quiet), WithErrorReporter(rep))
	fl := &failingListener{addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}, closed: make(chan struct{})}
	l := newListener(s, fl)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	require.NoError(t, l.Serve(hello))
	waitFor(t, l.Done(), "accept loop")

	ops, errs := rep.snapshot()
	require.Equal(t, []string{"accept"}, ops)
	assert.Equal(t, api.ErrCodeAccept, api.CodeOf(errs[0]))
	assert.Equal(t, api.ErrCodeAccept, api.CodeOf(l.Err()))
	assert.EqualValues(t, 1, s.Stats()["errors.accept"])

	require.NoError(t, s.Shutdown())
	waitFor(t, done, "worker pool")
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	cfg := testConfig()
	s := New(cfg, WithLogger(quiet))
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx, hello) }()
	require.Eventually(t, func() bool {
		addrs, _ := s.DumpState()["listeners"].([]string)
		return len(addrs) == 1
	}, 5*time.Second, 5*time.Millisecond)
	addr := s.DumpState()["listeners"].([]string)[0]

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = io.WriteString(conn, "GET /ctx HTTP/1.1\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	conn.Close()

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}

func TestLiveIdleTimeoutSetting(t *testing.T) {
	rep := &reports{}
	s, l := startServer(t, hello, WithErrorReporter(rep))
	s.Settings().SetConfig(map[string]any{SettingIdleTimeout: 50 * time.Millisecond})

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	require.Eventually(t, func() bool {
		ops, _ := rep.snapshot()
		return len(ops) == 1
	}, 5*time.Second, 5*time.Millisecond)
	_, errs := rep.snapshot()
	assert.True(t, api.IsTimeout(errs[0]))
}

func TestStateObserverSeesLifecycle(t *testing.T) {
	var mu sync.Mutex
	var seen []api.State
	_, l := startServer(t, hello, WithStateObserver(func(_ string, _, to api.State) {
		mu.Lock()
		seen = append(seen, to)
		mu.Unlock()
	}))

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	_, err = io.WriteString(conn, "GET / HTTP/1.0\r\n\r\n")
	require.NoError(t, err)
	_, err = io.ReadAll(conn)
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == api.StateTerminated
	}, 5*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []api.State{
		api.StateReading, api.StateDispatching, api.StateWriting, api.StateClosing, api.StateTerminated,
	}, seen)
}
