package workerpresentation

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/latifaja/ecom-orders/internal/domain/outbox"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"
)

// WithEventContext injects a request-scoped logger for background executions.
// Dynamic fields only: trace_id/span_id when valid, event_id (generated if empty),
// plus caller-provided low-cardinality attributes such as "event" or "use_case".
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	sc trace.SpanContext,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if sc.TraceID().IsValid() {
		fields = append(fields, observability.F("trace_id", sc.TraceID().String()))
	}
	if sc.SpanID().IsValid() {
		fields = append(fields, observability.F("span_id", sc.SpanID().String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Subscriber decorates a domoutbox.Subscriber so every handler runs with an
// event-scoped logger on its context.
type Subscriber struct {
	next domoutbox.Subscriber
	log  observability.Logger
}

func NewSubscriber(next domoutbox.Subscriber, logger observability.Logger) *Subscriber {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Subscriber{next: next, log: logger}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		attrs := map[string]string{"event": e.EventName()}
		if k, ok := e.(domoutbox.Keyed); ok {
			attrs["aggregate_id"] = k.AggregateID()
		}
		base := logctx.FromOr(ctx, s.log)
		return h(WithEventContext(ctx, base, trace.SpanContextFromContext(ctx), attrs), e)
	})
}
