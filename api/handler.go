// File: api/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package api defines Handler interface.

package api

import "github.com/momentics/hioload-http/protocol"

// Emitter transmits the response for the request being dispatched.
// Only the first call per dispatch is honored.
type Emitter func(resp *protocol.Response)

// Handler processes one parsed request and must call emit exactly once,
// synchronously or later from any goroutine.
type Handler interface {
	ServeRequest(req *protocol.Request, emit Emitter)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(req *protocol.Request, emit Emitter)

// ServeRequest calls f(req, emit).
func (f HandlerFunc) ServeRequest(req *protocol.Request, emit Emitter) {
	f(req, emit)
}
