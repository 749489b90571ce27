package oteltrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/latifaja/ecom-orders/internal/observability"
)

const defaultTracerName = "ecom-orders"

type tracer struct{ t trace.Tracer }

// New returns a tracer backed by the global provider; install one with otelsdk.Setup first.
func New(name string) observability.Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return &tracer{t: otel.Tracer(name)}
}

// NewFromProvider binds a tracer to an explicit provider instead of the global one.
func NewFromProvider(tp trace.TracerProvider, name string) observability.Tracer {
	if tp == nil {
		return New(name)
	}
	if name == "" {
		name = defaultTracerName
	}
	return &tracer{t: tp.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
