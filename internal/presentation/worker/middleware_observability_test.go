package workerpresentation

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/latifaja/ecom-orders/internal/domain/outbox"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"
)

type fieldLogger struct {
	fields []observability.Field
}

func (l *fieldLogger) With(fields ...observability.Field) observability.Logger {
	return &fieldLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
func (l *fieldLogger) Debug(string, ...observability.Field) {}
func (l *fieldLogger) Info(string, ...observability.Field)  {}
func (l *fieldLogger) Warn(string, ...observability.Field)  {}
func (l *fieldLogger) Error(string, ...observability.Field) {}

func (l *fieldLogger) value(key string) (any, bool) {
	for _, f := range l.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type keyedEvent struct{ id string }

func (keyedEvent) EventName() string     { return "order.created" }
func (e keyedEvent) AggregateID() string { return e.id }

type directSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (d *directSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if d.handlers == nil {
		d.handlers = map[string]domoutbox.Handler{}
	}
	d.handlers[name] = h
}

func TestWithEventContextFields(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := WithEventContext(context.Background(), &fieldLogger{}, sc, map[string]string{
		"event_id": "evt-1",
		"event":    "order.created",
		"empty":    "",
	})

	l, ok := logctx.From(ctx).(*fieldLogger)
	if !ok {
		t.Fatalf("context logger = %T, want *fieldLogger", logctx.From(ctx))
	}
	want := map[string]any{
		"event_id": "evt-1",
		"event":    "order.created",
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
	for k, v := range want {
		if got, ok := l.value(k); !ok || got != v {
			t.Errorf("field %q = %v, want %v", k, got, v)
		}
	}
	if _, ok := l.value("empty"); ok {
		t.Error("empty attribute should be skipped")
	}
}

func TestWithEventContextGeneratesEventID(t *testing.T) {
	ctx := WithEventContext(context.Background(), &fieldLogger{}, trace.SpanContext{}, nil)
	l := logctx.From(ctx).(*fieldLogger)
	if v, ok := l.value("event_id"); !ok || v == "" {
		t.Fatalf("event_id = %v, want generated id", v)
	}
	if _, ok := l.value("trace_id"); ok {
		t.Error("trace_id should be absent for an invalid span context")
	}
}

func TestSubscriberInjectsEventLogger(t *testing.T) {
	inner := &directSubscriber{}
	sub := NewSubscriber(inner, &fieldLogger{})

	var got *fieldLogger
	sub.Subscribe("order.created", func(ctx context.Context, _ domoutbox.Event) error {
		got, _ = logctx.From(ctx).(*fieldLogger)
		return nil
	})

	if err := inner.handlers["order.created"](context.Background(), keyedEvent{id: "o-1"}); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if got == nil {
		t.Fatal("handler saw no event logger")
	}
	if v, _ := got.value("aggregate_id"); v != "o-1" {
		t.Errorf("aggregate_id = %v, want o-1", v)
	}
	if v, _ := got.value("event"); v != "order.created" {
		t.Errorf("event = %v, want order.created", v)
	}
}
