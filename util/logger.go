// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to stderr with optional timestamps
// and level prefixes.  Named returns component-scoped children that
// inherit the parent's level and sink.
type Logger struct {
	level LogLevel
	name  string

	mu         *sync.Mutex
	output     io.Writer
	timestamps bool
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
// Timestamps turn on automatically in debug mode.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level:      LogLevel(verbosity),
		mu:         &sync.Mutex{},
		output:     os.Stderr,
		timestamps: verbosity >= int(LogDebug),
	}
}

// Named returns a child logger whose messages carry the component name.
func (l *Logger) Named(name string) *Logger {
	child := *l
	child.name = name
	return &child
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) { l.timestamps = on }

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) { l.output = w }

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LogNormal, "INF", format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LogNormal, "WRN", format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.logf(LogVerbose, "VRB", format, args...)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LogDebug, "DBG", format, args...)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LogQuiet, "ERR", format, args...)
}

func (l *Logger) logf(min LogLevel, tag, format string, args ...interface{}) {
	if l.level < min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		msg = l.name + ": " + msg
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timestamps {
		fmt.Fprintf(l.output, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), tag, msg)
	} else {
		fmt.Fprintf(l.output, "[%s] %s\n", tag, msg)
	}
}
