// File: internal/session/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package session drives one accepted connection through the
// read, dispatch and write cycle of HTTP/1.1 keep-alive:
//
//	Idle -> Reading -> Dispatching -> Writing -> Reading | Closing -> Terminated
//
// Every transition runs on the session's strand. Blocking socket calls happen
// in short-lived goroutines that only post their result back to the strand.
package session
