// File: internal/logger/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide structured logger on top of log/slog.

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"
)

var (
	mu            sync.RWMutex
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// Init replaces the process logger. json selects the JSON handler; source
// locations are added at debug level.
func Init(level slog.Level, json bool, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if s, ok := a.Value.Any().(*slog.Source); ok {
					s.File = filepath.Base(s.File)
				}
			}
			return a
		},
	}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		h = slog.NewJSONHandler(w, opts)
	}
	l := slog.New(h)

	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l)
}

// Disable drops every record.
func Disable() {
	Init(slog.LevelError+1, false, io.Discard)
}

// ParseLevel maps debug, info, warn and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// L returns the current process logger.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Logr exposes the process logger through the logr interface.
func Logr() logr.Logger {
	return logr.FromSlogHandler(L().Handler())
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) { L().Debug(msg, args...) }

// Info logs at Info level.
func Info(msg string, args ...any) { L().Info(msg, args...) }

// Warn logs at Warn level.
func Warn(msg string, args ...any) { L().Warn(msg, args...) }

// Error logs at Error level.
func Error(msg string, args ...any) { L().Error(msg, args...) }

// With returns a child logger carrying args.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
