// Package logging builds the process logger. Entries go to stdout as JSON
// and, when an event sink is configured, to the monitoring collection.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/rpattn/tamperlog/internal/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CriticalLevel is written as CRITICAL. Outside development mode zap only
// writes DPanic entries, it never panics.
const CriticalLevel = zapcore.DPanicLevel

// Options configures New.
type Options struct {
	Level       string
	App         string
	Environment string
	// Events receives every enabled entry. Nil disables the monitoring sink.
	Events EventWriter
	// Output defaults to stdout.
	Output zapcore.WriteSyncer
}

// New returns a production JSON logger tagged with app and environment.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = zapcore.Lock(os.Stdout)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), out, level),
	}
	if opts.Events != nil {
		cores = append(cores, NewEventCore(opts.Events, opts.App, opts.Environment, level))
	}

	logger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
	return logger.With(
		zap.String("app", opts.App),
		zap.String("environment", opts.Environment),
	), nil
}

// Critical writes msg at CRITICAL.
func Critical(l *zap.Logger, msg string, fields ...zap.Field) {
	if ce := l.Check(CriticalLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

// ParseLevel accepts DEBUG, INFO, WARN, ERROR and CRITICAL in any case.
// An empty string means INFO.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", domain.LevelInfo:
		return zapcore.InfoLevel, nil
	case domain.LevelDebug:
		return zapcore.DebugLevel, nil
	case domain.LevelWarn, "WARNING":
		return zapcore.WarnLevel, nil
	case domain.LevelError:
		return zapcore.ErrorLevel, nil
	case domain.LevelCritical:
		return CriticalLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// LevelName maps a zap level onto the monitoring level names.
func LevelName(l zapcore.Level) string {
	switch {
	case l <= zapcore.DebugLevel:
		return domain.LevelDebug
	case l == zapcore.InfoLevel:
		return domain.LevelInfo
	case l == zapcore.WarnLevel:
		return domain.LevelWarn
	case l == zapcore.ErrorLevel:
		return domain.LevelError
	default:
		return domain.LevelCritical
	}
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(LevelName(l))
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = levelEncoder
	return cfg
}
