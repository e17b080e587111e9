// File: internal/transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package transport owns socket-level concerns of hioload-http: binding a
// listening TCP socket with address reuse and the platform backlog, capping
// concurrent connections, and half-closing accepted connections. Platform
// socket options are split per OS via build tags.
package transport
