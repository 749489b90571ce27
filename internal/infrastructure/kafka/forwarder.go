package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	domoutbox "github.com/latifaja/ecom-orders/internal/domain/outbox"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"
)

const (
	peerKafka       = "kafka"
	headerEventType = "event_type"
)

// MessageWriter is the part of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a writer that hashes on the message key, so all events of
// one order land on the same partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// Forwarder relays in-process order events to a Kafka topic as JSON. Delivery is
// best-effort: a failed write is logged and counted, never retried.
type Forwarder struct {
	writer MessageWriter
	log    observability.Logger

	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewForwarder(writer MessageWriter, tel observability.Observability) *Forwarder {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Forwarder{
		writer:       writer,
		log:          tel.Logger().With(observability.F("component", "kafka_forwarder")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Start subscribes the forwarder to each named event.
func (f *Forwarder) Start(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, f.forward)
	}
}

func (f *Forwarder) Close() error {
	return f.writer.Close()
}

func (f *Forwarder) forward(ctx context.Context, e domoutbox.Event) (err error) {
	name := e.EventName()
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			logctx.FromOr(ctx, f.log).Warn("kafka_forward_failed",
				observability.F("event", name),
				observability.F("error", err),
			)
		}
		f.extCounter.Add(1,
			observability.L("peer", peerKafka),
			observability.L("endpoint", name),
			observability.L("outcome", outcome),
		)
		f.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peerKafka),
			observability.L("endpoint", name),
		)
	}()

	msg, err := NewMessage(ctx, e)
	if err != nil {
		return err
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", name, err)
	}
	return nil
}

// NewMessage encodes e as JSON, keys it by aggregate id when available and
// injects the current trace context into the headers.
func NewMessage(ctx context.Context, e domoutbox.Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s: %w", e.EventName(), err)
	}

	msg := kafka.Message{
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(e.EventName())},
		},
	}
	if k, ok := e.(domoutbox.Keyed); ok {
		msg.Key = []byte(k.AggregateID())
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return msg, nil
}
