// File: internal/transport/listen.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/momentics/hioload-http/api"
)

// ListenConfig holds socket options applied by Listen.
type ListenConfig struct {
	// ReuseAddr enables SO_REUSEADDR on the listening socket.
	ReuseAddr bool
	// MaxConnections caps concurrently accepted connections; 0 means no cap.
	MaxConnections int
	// KeepAlive is the TCP keep-alive period of accepted connections;
	// negative disables it, 0 keeps the OS default.
	KeepAlive time.Duration
}

// Listen binds address:port and places the socket into listening state.
// The backlog is the platform maximum (Go reads the kernel somaxconn).
// Failures are returned as *api.Error with ErrCodeBind.
func Listen(ctx context.Context, address string, port int, cfg ListenConfig) (net.Listener, error) {
	if address != "" && net.ParseIP(address) == nil {
		return nil, api.NewError(api.ErrCodeBind, "bind",
			fmt.Errorf("invalid IP address %q: %w", address, api.ErrInvalidArgument))
	}
	if port < 0 || port > 65535 {
		return nil, api.NewError(api.ErrCodeBind, "bind",
			fmt.Errorf("invalid port %d: %w", port, api.ErrInvalidArgument))
	}

	lc := net.ListenConfig{KeepAlive: cfg.KeepAlive}
	if cfg.ReuseAddr {
		lc.Control = reuseAddrControl
	}
	endpoint := net.JoinHostPort(address, strconv.Itoa(port))
	ln, err := lc.Listen(ctx, "tcp", endpoint)
	if err != nil {
		return nil, api.NewError(api.ErrCodeBind, "bind", fmt.Errorf("listen %s: %w", endpoint, err))
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}
	return ln, nil
}

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var serr error
	if err := c.Control(func(fd uintptr) {
		serr = setReuseAddr(fd)
	}); err != nil {
		return err
	}
	if serr != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", serr)
	}
	return nil
}
