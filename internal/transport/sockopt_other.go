//go:build !unix && !windows

// File: internal/transport/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

func setReuseAddr(fd uintptr) error { return nil }
