// Package diag provides the engine's structured logging and the bounded
// diagnostic trace buffers used by the driver's xrun-recovery reporting.
// Logging is an ambient concern carried regardless of the appliance's
// external logging-sink scope: components still need to say what they
// did, even though wiring that output to a file or syslog is someone
// else's job.
package diag

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps a charmbracelet/log.Logger with a fixed component
// prefix, matching the level/prefix shape the appliance's other
// components expect without hand-rolling level filtering.
type Logger struct {
	inner *log.Logger
}

var (
	root     *Logger
	rootOnce sync.Once
)

// Root returns the process-wide default logger, created lazily at
// Info level writing to stderr.
func Root() *Logger {
	rootOnce.Do(func() {
		root = &Logger{inner: log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Level:           log.InfoLevel,
		})}
	})
	return root
}

// With returns a child logger tagging every message with the given
// component name, e.g. diag.Root().With("driver").
func (l *Logger) With(component string) *Logger {
	return &Logger{inner: l.inner.With("component", component)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.inner.Error(msg, kv...) }

// SetLevel adjusts the minimum level this logger emits.
func (l *Logger) SetLevel(level log.Level) {
	l.inner.SetLevel(level)
}
