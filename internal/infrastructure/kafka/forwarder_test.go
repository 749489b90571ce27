package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	domorder "github.com/latifaja/ecom-orders/internal/domain/order"
	domoutbox "github.com/latifaja/ecom-orders/internal/domain/outbox"
	"github.com/latifaja/ecom-orders/internal/infrastructure/outbox"
	workerpresentation "github.com/latifaja/ecom-orders/internal/presentation/worker"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type captureSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (c *captureSubscriber) Subscribe(name string, h domoutbox.Handler) {
	if c.handlers == nil {
		c.handlers = map[string]domoutbox.Handler{}
	}
	c.handlers[name] = h
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestForwarderWritesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	f := NewForwarder(w, nil)
	sub := &captureSubscriber{}
	created := domorder.OrderCreatedEvent{}.EventName()
	failed := domorder.StockDecrementFailedEvent{}.EventName()
	f.Start(sub, created, failed)

	if len(sub.handlers) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(sub.handlers))
	}

	evt := domorder.StockDecrementFailedEvent{OrderID: "o-1", ProductID: "p-1", Quantity: 2, Reason: "negative_stock"}
	if err := sub.handlers[failed](context.Background(), evt); err != nil {
		t.Fatalf("forward error = %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "o-1" {
		t.Errorf("key = %q, want o-1", msg.Key)
	}
	if got := header(msg, headerEventType); got != failed {
		t.Errorf("event_type header = %q, want %q", got, failed)
	}
	var decoded domorder.StockDecrementFailedEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.OrderID != "o-1" || decoded.Reason != "negative_stock" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestForwarderReturnsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	f := NewForwarder(&recordingWriter{err: boom}, nil)

	err := f.forward(context.Background(), domorder.OrderCreatedEvent{OrderID: "o"})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestNewMessageInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xa},
		SpanID:     trace.SpanID{0xb},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg, err := NewMessage(ctx, domorder.OrderCreatedEvent{OrderID: "o"})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	if header(msg, "traceparent") == "" {
		t.Fatal("traceparent header missing")
	}
}

type chanWriter struct{ msgs chan kafka.Message }

func (w *chanWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		w.msgs <- m
	}
	return nil
}

func (w *chanWriter) Close() error { return nil }

func TestForwarderThroughBusCarriesPublisherTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	bus := outbox.NewBus(nil)
	w := &chanWriter{msgs: make(chan kafka.Message, 1)}
	created := domorder.OrderCreatedEvent{}.EventName()
	NewForwarder(w, nil).Start(workerpresentation.NewSubscriber(bus, nil), created)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xc, 0xa, 0xf, 0xe},
		SpanID:     trace.SpanID{0xd},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	if err := bus.Publish(ctx, domorder.OrderCreatedEvent{OrderID: "o-7"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-w.msgs:
		tp := header(msg, "traceparent")
		if !strings.Contains(tp, sc.TraceID().String()) {
			t.Fatalf("traceparent = %q, want trace id %s", tp, sc.TraceID())
		}
		if string(msg.Key) != "o-7" {
			t.Errorf("key = %q, want o-7", msg.Key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for kafka message")
	}
}
