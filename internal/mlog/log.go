// Package mlog defines the Logger interface threaded through this codebase
// via context.Context, plus a dependency-free implementation for tests and
// drivers that don't need structured/traced output. Production wiring uses
// internal/mzap instead.
package mlog

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Logger is the common logging interface every component depends on.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)

	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Fatalln(args ...any)

	// WithFields returns a new Logger that prefixes every subsequent
	// record with fields (key, value, key, value, ...). The receiver is
	// left unchanged.
	WithFields(fields ...any) Logger

	// Sync flushes any buffered log entries.
	Sync() error
}

// Level represents the verbosity of the logging system.
type Level int8

// These mirror the CLI's -v/--verbose levels (§6.1: 0=info, 1=debug,
// 2=trace) plus the usual warn/error/fatal rungs above them.
const (
	FatalLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

// ParseLevel parses a case-insensitive level name.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "fatal":
		return FatalLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "trace":
		return TraceLevel, nil
	}

	var l Level

	return l, fmt.Errorf("not a valid log level: %q", lvl)
}

// FromVerbosity maps the -v/--verbose repeat count (§6.1) to a Level.
func FromVerbosity(v int) Level {
	switch {
	case v <= 0:
		return InfoLevel
	case v == 1:
		return DebugLevel
	default:
		return TraceLevel
	}
}

// StdLogger is a standard-library (log package) implementation of Logger,
// used by tests and as the zero-dependency fallback before a production
// logger is wired in.
type StdLogger struct {
	Level  Level
	fields []any
}

// NewStdLogger returns a StdLogger at the given level.
func NewStdLogger(level Level) *StdLogger {
	return &StdLogger{Level: level}
}

func (l *StdLogger) enabled(level Level) bool { return l.Level >= level }

func (l *StdLogger) prefixed(args []any) []any {
	if len(l.fields) == 0 {
		return args
	}

	return append(append([]any{}, l.fields...), args...)
}

func (l *StdLogger) Info(args ...any) {
	if l.enabled(InfoLevel) {
		log.Print(l.prefixed(args)...)
	}
}

func (l *StdLogger) Infof(format string, args ...any) {
	if l.enabled(InfoLevel) {
		log.Print(l.prefixed([]any{fmt.Sprintf(format, args...)})...)
	}
}

func (l *StdLogger) Infoln(args ...any) {
	if l.enabled(InfoLevel) {
		log.Println(l.prefixed(args)...)
	}
}

func (l *StdLogger) Error(args ...any) {
	if l.enabled(ErrorLevel) {
		log.Print(l.prefixed(args)...)
	}
}

func (l *StdLogger) Errorf(format string, args ...any) {
	if l.enabled(ErrorLevel) {
		log.Print(l.prefixed([]any{fmt.Sprintf(format, args...)})...)
	}
}

func (l *StdLogger) Errorln(args ...any) {
	if l.enabled(ErrorLevel) {
		log.Println(l.prefixed(args)...)
	}
}

func (l *StdLogger) Warn(args ...any) {
	if l.enabled(WarnLevel) {
		log.Print(l.prefixed(args)...)
	}
}

func (l *StdLogger) Warnf(format string, args ...any) {
	if l.enabled(WarnLevel) {
		log.Print(l.prefixed([]any{fmt.Sprintf(format, args...)})...)
	}
}

func (l *StdLogger) Warnln(args ...any) {
	if l.enabled(WarnLevel) {
		log.Println(l.prefixed(args)...)
	}
}

func (l *StdLogger) Debug(args ...any) {
	if l.enabled(DebugLevel) {
		log.Print(l.prefixed(args)...)
	}
}

func (l *StdLogger) Debugf(format string, args ...any) {
	if l.enabled(DebugLevel) {
		log.Print(l.prefixed([]any{fmt.Sprintf(format, args...)})...)
	}
}

func (l *StdLogger) Debugln(args ...any) {
	if l.enabled(DebugLevel) {
		log.Println(l.prefixed(args)...)
	}
}

func (l *StdLogger) Fatal(args ...any) {
	if l.enabled(FatalLevel) {
		log.Print(l.prefixed(args)...)
	}
}

func (l *StdLogger) Fatalf(format string, args ...any) {
	if l.enabled(FatalLevel) {
		log.Print(l.prefixed([]any{fmt.Sprintf(format, args...)})...)
	}
}

func (l *StdLogger) Fatalln(args ...any) {
	if l.enabled(FatalLevel) {
		log.Println(l.prefixed(args)...)
	}
}

//nolint:ireturn
func (l *StdLogger) WithFields(fields ...any) Logger {
	return &StdLogger{
		Level:  l.Level,
		fields: append(append([]any{}, l.fields...), fields...),
	}
}

func (l *StdLogger) Sync() error { return nil }

type loggerContextKey struct{}

// ContextWithLogger returns a context carrying logger, retrievable via
// FromContext.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext extracts the Logger stored by ContextWithLogger, or a
// no-level StdLogger (effectively silent) if none was stored.
//
//nolint:ireturn
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(Logger); ok {
		return logger
	}

	return &StdLogger{Level: FatalLevel}
}
