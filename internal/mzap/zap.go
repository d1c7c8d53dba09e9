// Package mzap adapts an otelzap.SugaredLogger to the mlog.Logger
// interface, so every log line emitted while a span is active carries trace
// context. This is the production logger; tests and simple drivers use
// mlog.StdLogger directly.
package mzap

import (
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/savannahghi/idrclient/internal/mlog"
)

// TracedLogger wraps an otelzap.SugaredLogger to satisfy mlog.Logger.
type TracedLogger struct {
	logger *otelzap.SugaredLogger
}

// New builds a TracedLogger at the given mlog.Level, logging JSON to
// stderr, matching the teacher's stderr-by-default logging config (§6.2
// LOGGING key default).
func New(level mlog.Level) (*TracedLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	wrapped := otelzap.New(base, otelzap.WithMinLevel(toZapLevel(level)))

	return &TracedLogger{logger: wrapped.Sugar()}, nil
}

func toZapLevel(level mlog.Level) zapcore.Level {
	switch level {
	case mlog.FatalLevel:
		return zapcore.FatalLevel
	case mlog.ErrorLevel:
		return zapcore.ErrorLevel
	case mlog.WarnLevel:
		return zapcore.WarnLevel
	case mlog.InfoLevel:
		return zapcore.InfoLevel
	case mlog.DebugLevel, mlog.TraceLevel:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *TracedLogger) Info(args ...any)                  { l.logger.Info(args...) }
func (l *TracedLogger) Infof(format string, args ...any)  { l.logger.Infof(format, args...) }
func (l *TracedLogger) Infoln(args ...any)                { l.logger.Infoln(args...) }
func (l *TracedLogger) Error(args ...any)                 { l.logger.Error(args...) }
func (l *TracedLogger) Errorf(format string, args ...any) { l.logger.Errorf(format, args...) }
func (l *TracedLogger) Errorln(args ...any)               { l.logger.Errorln(args...) }
func (l *TracedLogger) Warn(args ...any)                  { l.logger.Warn(args...) }
func (l *TracedLogger) Warnf(format string, args ...any)  { l.logger.Warnf(format, args...) }
func (l *TracedLogger) Warnln(args ...any)                { l.logger.Warnln(args...) }
func (l *TracedLogger) Debug(args ...any)                 { l.logger.Debug(args...) }
func (l *TracedLogger) Debugf(format string, args ...any) { l.logger.Debugf(format, args...) }
func (l *TracedLogger) Debugln(args ...any)               { l.logger.Debugln(args...) }
func (l *TracedLogger) Fatal(args ...any)                 { l.logger.Fatal(args...) }
func (l *TracedLogger) Fatalf(format string, args ...any) { l.logger.Fatalf(format, args...) }
func (l *TracedLogger) Fatalln(args ...any)               { l.logger.Fatalln(args...) }

// WithFields adds structured context, returning a new logger and leaving
// the receiver unchanged.
//
//nolint:ireturn
func (l *TracedLogger) WithFields(fields ...any) mlog.Logger {
	return &TracedLogger{logger: l.logger.With(fields...)}
}

// Sync flushes the underlying zap core.
func (l *TracedLogger) Sync() error {
	return l.logger.Sync()
}
