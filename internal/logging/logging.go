// Package logging provides the small leveled logger every CodePrism
// component logs through. It generalizes the teacher's internal/debug
// package: a mutex-guarded writer around the standard library's
// *log.Logger, with a Quiet mode for transports (like stdio MCP) that
// own stdout/stderr and cannot tolerate incidental log lines.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// Level is a log severity, ordered low to high.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a small leveled wrapper over *log.Logger. It is safe for
// concurrent use.
type Logger struct {
	mu     sync.Mutex
	out    *log.Logger
	level  Level
	quiet  bool
	prefix string
}

// New creates a Logger writing to w at the given minimum level.
func New(w io.Writer, level Level, prefix string) *Logger {
	return &Logger{
		out:    log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		level:  level,
		prefix: prefix,
	}
}

// Discard returns a Logger that drops every message; used as the
// zero-value-safe default when no logger is supplied.
func Discard() *Logger {
	return New(io.Discard, LevelError, "")
}

// Stderr returns a Logger writing to os.Stderr, the teacher's default
// destination for diagnostic output (stdout is reserved for the
// stdio MCP transport).
func Stderr(level Level, prefix string) *Logger {
	return New(os.Stderr, level, prefix)
}

// Quiet suppresses all output regardless of level, mirroring the
// teacher's MCP-mode switch that silences stdio logging while the
// protocol layer owns stdout/stdin.
func (l *Logger) Quiet(q bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quiet = q
}

func (l *Logger) log(level Level, format string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quiet || level < l.level {
		return
	}
	line := "[" + level.String() + "] "
	if l.prefix != "" {
		line += l.prefix + ": "
	}
	l.out.Printf(line+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args) }

// With returns a copy of the logger with an additional prefix segment,
// useful for per-component loggers (e.g. log.With("bulkindex")).
func (l *Logger) With(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "." + component
	}
	return &Logger{out: l.out, level: l.level, quiet: l.quiet, prefix: prefix}
}
