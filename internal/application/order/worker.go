package order

import (
	"context"
	"time"

	domorder "github.com/latifaja/ecom-orders/internal/domain/order"
	domoutbox "github.com/latifaja/ecom-orders/internal/domain/outbox"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	workerService           = "order-worker"
	useCaseStockDiscrepancy = "order.worker.stock_decrement_failed"
)

// DiscrepancyWorker reports orders whose stock decrement pass did not finish.
// It only records the discrepancy; it never touches inventory or the order.
type DiscrepancyWorker struct {
	subscriber domoutbox.Subscriber
	tracer     observability.Tracer

	log         observability.Logger
	reqCounter  observability.Counter        // usecase_requests_total{use_case,outcome}
	durObserver observability.BoundHistogram // usecase_duration_seconds{use_case}
	discrepancy observability.Counter        // order_stock_discrepancies_total{reason}
}

func NewDiscrepancyWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *DiscrepancyWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &DiscrepancyWorker{
		subscriber:  subscriber,
		tracer:      tel.Tracer(),
		log:         tel.Logger().With(observability.F("service", workerService)),
		reqCounter:  m.Counter(observability.MUsecaseRequests),
		durObserver: m.Histogram(observability.MUsecaseDuration).Bind(observability.L("use_case", useCaseStockDiscrepancy)),
		discrepancy: m.Counter(observability.MStockDiscrepancies),
	}
}

func (w *DiscrepancyWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domorder.StockDecrementFailedEvent{}.EventName(), w.handleStockDecrementFailed)
}

func (w *DiscrepancyWorker) handleStockDecrementFailed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.StockDecrementFailedEvent)
	if !ok {
		w.reqCounter.Add(1, observability.L("use_case", useCaseStockDiscrepancy), observability.L("outcome", "ignored"))
		return nil
	}

	ctx, span := w.tracer.Start(ctx, spanPrefix+"StockDecrementFailed",
		attribute.String("use_case", useCaseStockDiscrepancy),
		attribute.String("event", e.EventName()),
		attribute.String("order.id", evt.OrderID),
	)
	start := time.Now()

	logger := logctx.FromOr(ctx, w.log).With(append(observability.TraceFields(ctx),
		observability.F("use_case", useCaseStockDiscrepancy),
		observability.F("event", e.EventName()),
	)...)

	w.discrepancy.Add(1, observability.L("reason", evt.Reason))
	logger.Error("order_stock_discrepancy",
		observability.F("order_id", evt.OrderID),
		observability.F("client_id", evt.ClientID),
		observability.F("product_id", evt.ProductID),
		observability.F("quantity", evt.Quantity),
		observability.F("reason", evt.Reason),
		observability.F("applied_lines", len(evt.Applied)),
		observability.F("not_attempted_lines", len(evt.NotAttempted)),
	)

	lat := time.Since(start).Seconds()
	w.reqCounter.Add(1, observability.L("use_case", useCaseStockDiscrepancy), observability.L("outcome", "success"))
	w.durObserver.Observe(lat)
	logger.Info("use_case_done",
		observability.F("outcome", "success"),
		observability.F("status", "OK"),
		observability.F("latency_seconds", lat),
		observability.F("order_id", evt.OrderID),
	)

	span.SetStatus(codes.Ok, "OK")
	span.End()
	return nil
}
