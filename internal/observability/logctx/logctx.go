// Package logctx carries the request or event scoped logger on a context so
// adapters called deep inside a use case log with the caller's fields.
package logctx

import (
	"context"

	"github.com/latifaja/ecom-orders/internal/observability"
)

type loggerKey struct{}

// With returns ctx carrying logger. A nil logger leaves ctx as it is.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	return fallback
}

// Enrich adds fields to the context logger, or to fallback when ctx has none,
// and stores the result back on the returned context.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) (context.Context, observability.Logger) {
	logger := FromOr(ctx, fallback)
	if logger == nil {
		logger = observability.NopLogger()
	}
	if len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return With(ctx, logger), logger
}
