// Package vlog is a small leveled logger wrapping the standard [log]
// package with a level-prefixed writer. VaultContext takes an optional *Logger; the zero value discards
// everything so tests and library callers that don't care about logs
// pay nothing for them.
package vlog

import (
	"io"
	"log"
	"os"
)

// Level orders log verbosity, least to most verbose.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger is a minimal leveled logger. The zero value discards all
// output.
type Logger struct {
	level Level
	std   *log.Logger
}

// New returns a Logger writing to w at the given level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{level: level, std: log.New(w, "", log.LstdFlags)}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelError)
}

// Default returns a Logger writing warnings and errors to stderr, the
// sensible default for a library embedded in another program.
func Default() *Logger {
	return New(os.Stderr, LevelWarn)
}

func (l *Logger) log(level Level, prefix, format string, args ...any) {
	if l == nil || l.std == nil || level > l.level {
		return
	}

	l.std.Printf(prefix+" "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, "ERROR", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, "WARN", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, "INFO", format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, "DEBUG", format, args...) }
