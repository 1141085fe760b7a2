// Package xlog wraps zerolog with the context-correlation conventions used throughout the
// coordinator and worker.
package xlog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	jobIDKey
)

// Config controls the base logger construction.
type Config struct {
	Level   string // "debug", "info", "warn", "error"
	Service string
	Version string
	Pretty  bool
	Output  io.Writer
}

// New builds a base zerolog.Logger tagged with the service/version, matching the teacher's
// xglog.Configure shape.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Str("version", cfg.Version).
		Logger()
}

// ContextWithCorrelationID returns a context carrying id for later retrieval by CorrelationID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID extracts the correlation id set by ContextWithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// ContextWithJobID returns a context carrying id for later retrieval by JobID.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobID extracts the job id set by ContextWithJobID, or "".
func JobID(ctx context.Context) string {
	v, _ := ctx.Value(jobIDKey).(string)
	return v
}

// FromContext enriches logger with whatever correlation/job ids ctx carries.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	ectx := logger.With()
	if id := CorrelationID(ctx); id != "" {
		ectx = ectx.Str("correlation_id", id)
	}
	if id := JobID(ctx); id != "" {
		ectx = ectx.Str("job_id", id)
	}
	return ectx.Logger()
}
