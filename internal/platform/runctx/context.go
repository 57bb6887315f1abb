package runctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey contextKey = "github.com/veloria/catalogsync/internal/platform/runctx/logger"
	runContextKey    contextKey = "github.com/veloria/catalogsync/internal/platform/runctx/run"
)

var noopLogger = zap.NewNop()

// RunInfo captures the identity of the current reconciliation run.
type RunInfo struct {
	RunID  string
	Mode   string
	DryRun bool
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance used across the package.
func NoopLogger() *zap.Logger { return noopLogger }

// WithRun stores the run metadata on the context for downstream usage.
func WithRun(ctx context.Context, info RunInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runContextKey, info)
}

// Run retrieves the run metadata from context when available.
func Run(ctx context.Context) (RunInfo, bool) {
	if ctx == nil {
		return RunInfo{}, false
	}
	info, ok := ctx.Value(runContextKey).(RunInfo)
	if !ok {
		return RunInfo{}, false
	}
	return info, true
}
