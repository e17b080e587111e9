// File: internal/transport/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net"
	"time"
)

// CloseWrite half-closes conn for sending when the transport supports it.
// Connections wrapped by a connection cap do not expose it; the caller
// closes them fully right after.
func CloseWrite(conn net.Conn) error {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Interrupt wakes any read or write blocked on conn by moving its deadline
// into the past. The connection stays open.
func Interrupt(conn net.Conn) {
	_ = conn.SetDeadline(time.Unix(1, 0))
}
