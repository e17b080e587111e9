// File: server/reporter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"log/slog"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-http/api"
)

// LogReporter logs every reported error as "<op>: <message>". Accept
// failures are logged at error level since they stop a listener.
func LogReporter(l *slog.Logger) api.ErrorReporter {
	return api.ReporterFunc(func(op string, err error) {
		level := slog.LevelWarn
		if op == "accept" || api.CodeOf(err) == api.ErrCodeInternal {
			level = slog.LevelError
		}
		l.Log(context.Background(), level, op+": "+err.Error(), "op", op, "code", api.CodeOf(err).String())
	})
}

// LogrReporter routes reported errors to a logr sink.
func LogrReporter(l logr.Logger) api.ErrorReporter {
	return api.ReporterFunc(func(op string, err error) {
		l.Error(err, op, "code", api.CodeOf(err).String())
	})
}
