// Package logger provides structured logging for the csql query engine.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger with key/value helpers.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// ParseLevel converts a level name from the configuration.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func newEncoder(format string) zapcore.Encoder {
	if strings.ToLower(format) == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	return zapcore.NewConsoleEncoder(cfg)
}

// New creates a Logger. output is "stderr", "stdout" or a file path the
// log is appended to.
func New(level, format, output string) (*Logger, error) {
	var w zapcore.WriteSyncer
	switch strings.ToLower(output) {
	case "stderr", "":
		w = zapcore.Lock(os.Stderr)
	case "stdout":
		w = zapcore.Lock(os.Stdout)
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		w = zapcore.AddSync(file)
	}
	return newLogger(level, format, w)
}

// NewWithWriter creates a Logger that writes to w.
func NewWithWriter(level, format string, w io.Writer) (*Logger, error) {
	return newLogger(level, format, zapcore.AddSync(w))
}

func newLogger(level, format string, w zapcore.WriteSyncer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(newEncoder(format), w, lvl)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: base.Sugar(), base: base}, nil
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// With returns a Logger that adds the given key/value pairs to every entry.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
	}
}

// Named returns a Logger for a subsystem, e.g. "runtime" or "http".
func (l *Logger) Named(name string) *Logger {
	named := l.base.Named(name)
	return &Logger{SugaredLogger: named.Sugar(), base: named}
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

// Fatal logs at Fatal level then calls os.Exit(1).
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, keysAndValues...)
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	nop := zap.NewNop()
	return &Logger{SugaredLogger: nop.Sugar(), base: nop}
}
