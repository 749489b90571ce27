package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	domain "github.com/latifaja/ecom-orders/internal/domain/order"
	domoutbox "github.com/latifaja/ecom-orders/internal/domain/outbox"
	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/infrastructure/memory"
	"github.com/latifaja/ecom-orders/internal/observability"
)

type adjustCall struct {
	ProductID string
	Delta     int
}

// recordingDirectory records decrements and injects failures per product.
type recordingDirectory struct {
	*memory.ProductDirectory

	mu         sync.Mutex
	calls      []adjustCall
	adjustErr  map[string]error
	findOneErr error
}

func newRecordingDirectory(ps ...product.Product) *recordingDirectory {
	return &recordingDirectory{ProductDirectory: memory.NewProductDirectory(ps...), adjustErr: map[string]error{}}
}

func (d *recordingDirectory) FindOne(ctx context.Context, id string) (*product.Product, error) {
	if d.findOneErr != nil {
		return nil, d.findOneErr
	}
	return d.ProductDirectory.FindOne(ctx, id)
}

func (d *recordingDirectory) AdjustQuantity(ctx context.Context, id string, delta int) (*product.Product, error) {
	d.mu.Lock()
	d.calls = append(d.calls, adjustCall{ProductID: id, Delta: delta})
	err := d.adjustErr[id]
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return d.ProductDirectory.AdjustQuantity(ctx, id, delta)
}

func (d *recordingDirectory) stock(id string) int {
	p, err := d.ProductDirectory.FindOne(context.Background(), id)
	if err != nil {
		return -1
	}
	return p.Quantity
}

type failingRepository struct {
	*memory.OrderRepository
	saveErr error
}

func (r *failingRepository) Save(ctx context.Context, o *domain.Order) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.OrderRepository.Save(ctx, o)
}

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

// labelCounter counts Add calls keyed by the joined label values.
type labelCounter struct {
	mu     sync.Mutex
	counts map[string]float64
}

func labelKey(labels []observability.Label) string {
	key := ""
	for _, l := range labels {
		key += l.Key + "=" + l.Value + ";"
	}
	return key
}

func (c *labelCounter) Add(d float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[labelKey(labels)] += d
}

func (c *labelCounter) Bind(labels ...observability.Label) observability.BoundCounter {
	return boundFunc(func(d float64) { c.Add(d, labels...) })
}

// boundFunc serves as both bound counter and bound histogram.
type boundFunc func(float64)

func (f boundFunc) Add(d float64)     { f(d) }
func (f boundFunc) Observe(v float64) { f(v) }

// labelHistogram counts observations keyed by the joined label values.
type labelHistogram struct {
	mu     sync.Mutex
	counts map[string]int
}

func (h *labelHistogram) Observe(_ float64, labels ...observability.Label) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[labelKey(labels)]++
}

func (h *labelHistogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return boundFunc(func(v float64) { h.Observe(v, labels...) })
}

func (h *labelHistogram) get(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[key]
}

func (c *labelCounter) get(key string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

type countingTelemetry struct {
	counters   map[observability.MetricKey]*labelCounter
	histograms map[observability.MetricKey]*labelHistogram
}

func newCountingTelemetry() *countingTelemetry {
	return &countingTelemetry{
		counters:   map[observability.MetricKey]*labelCounter{},
		histograms: map[observability.MetricKey]*labelHistogram{},
	}
}

func (t *countingTelemetry) Tracer() observability.Tracer   { return observability.NopTracer() }
func (t *countingTelemetry) Logger() observability.Logger   { return observability.NopLogger() }
func (t *countingTelemetry) Metrics() observability.Metrics { return t }

func (t *countingTelemetry) Counter(k observability.MetricKey) observability.Counter {
	c, ok := t.counters[k]
	if !ok {
		c = &labelCounter{counts: map[string]float64{}}
		t.counters[k] = c
	}
	return c
}

func (t *countingTelemetry) Histogram(k observability.MetricKey) observability.Histogram {
	h, ok := t.histograms[k]
	if !ok {
		h = &labelHistogram{counts: map[string]int{}}
		t.histograms[k] = h
	}
	return h
}

func priced(id, price string, qty int) product.Product {
	return product.Product{ID: id, Name: id, Price: decimal.RequireFromString(price), Quantity: qty}
}
