// File: api/reporter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// ErrorReporter receives (operation, error) pairs for accept, read, write,
// bind, dispatch and emit failures.
type ErrorReporter interface {
	ReportError(op string, err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(op string, err error)

// ReportError calls f(op, err).
func (f ReporterFunc) ReportError(op string, err error) {
	f(op, err)
}

// StateObserver is notified of every session state transition, in order,
// from inside the session's exclusivity domain.
type StateObserver func(sessionID string, from, to State)
