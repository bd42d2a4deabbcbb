// Package logger builds the bullets loggers shared by the CLI and the
// platform adapters.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sgaunet/bullets"
)

// ParseLevel maps a level name to a bullets level. Unknown names give info.
func ParseLevel(name string) bullets.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return bullets.DebugLevel
	case "warn", "warning":
		return bullets.WarnLevel
	case "error":
		return bullets.ErrorLevel
	default:
		return bullets.InfoLevel
	}
}

// NewLogger creates a logger writing to stderr so command output on stdout
// stays machine-readable.
func NewLogger(logLevel string) *bullets.Logger {
	return NewLoggerTo(os.Stderr, logLevel)
}

// NewLoggerTo creates a logger writing to w at the given level.
func NewLoggerTo(w io.Writer, logLevel string) *bullets.Logger {
	l := bullets.New(w)
	l.SetLevel(ParseLevel(logLevel))
	return l
}

// NoLogger returns a logger that only emits fatal messages.
func NoLogger() *bullets.Logger {
	l := bullets.New(io.Discard)
	l.SetLevel(bullets.FatalLevel)
	return l
}
