package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/latifaja/ecom-orders/internal/application"
	domain "github.com/latifaja/ecom-orders/internal/domain/order"
	domoutbox "github.com/latifaja/ecom-orders/internal/domain/outbox"
	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
)

// CreateOrderUseCase validates requested lines against live inventory, prices
// them, commits the order locally and then decrements remote stock line by line.
//
// The decrement pass is not covered by the local transaction and is never
// compensated; a failure there surfaces as *PartialFailureError.
type CreateOrderUseCase struct {
	repo        domain.Repository
	directory   product.Directory
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	tracer      observability.Tracer

	log         observability.Logger
	reqCounter  observability.Counter        // usecase_requests_total{use_case,outcome}
	durObserver observability.BoundHistogram // usecase_duration_seconds{use_case="order.create"}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewCreateOrderUseCase(
	repo domain.Repository,
	directory product.Directory,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metricsProvider := tel.Metrics()
	durations := metricsProvider.Histogram(observability.MUsecaseDuration)

	return &CreateOrderUseCase{
		repo:         repo,
		directory:    directory,
		idGenerator:  idGen,
		publisher:    publisher,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", orderService)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durObserver:  durations.Bind(observability.L("use_case", useCaseOrderCreate)),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

var _ application.UseCase[CreateOrderInput, *OrderView] = (*CreateOrderUseCase)(nil)

type LineInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	ClientID string
	Lines    []LineInput
}

// Execute runs the three passes. On *PartialFailureError the returned view is
// non-nil: the order exists and is readable.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *OrderView, err error) {
	ctx, logger := logctx.Enrich(ctx, uc.log, observability.F("use_case", useCaseOrderCreate))

	var orderID string
	var publishErr error

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseOrderCreate),
		attribute.String("order.client_id", cmd.ClientID),
		attribute.Int("order.lines", len(cmd.Lines)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderCreate),
			observability.L("outcome", outcome),
		)
		uc.durObserver.Observe(lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		fields = append(fields, observability.TraceFields(ctx)...)
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	if len(cmd.Lines) == 0 {
		outcome, statusText = "rejected", "LINES_REQUIRED"
		return nil, newValidation("at least one line is required")
	}
	for i, l := range cmd.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			outcome, statusText = "rejected", "PRODUCT_ID_REQUIRED"
			return nil, newValidation(fmt.Sprintf("line %d: product id is required", i))
		}
		if l.Quantity <= 0 {
			outcome, statusText = "rejected", "QUANTITY_INVALID"
			return nil, newValidation(fmt.Sprintf("line %d: quantity must be greater than zero", i))
		}
	}

	// Pass 1: validate and price. Advisory only; stock may change before pass 3.
	total := decimal.Zero
	snapshots := make([]*product.Product, len(cmd.Lines))
	for i, l := range cmd.Lines {
		p, ferr := uc.directory.FindOne(ctx, l.ProductID)
		if ferr != nil {
			if errors.Is(ferr, product.ErrNotFound) {
				outcome, statusText = "rejected", "PRODUCT_NOT_FOUND"
				return nil, &ProductNotFoundError{ProductID: l.ProductID}
			}
			outcome, statusText = "error", "DIRECTORY_LOOKUP_FAILED"
			return nil, wrapDirectoryError(ferr)
		}
		if l.Quantity > p.Quantity {
			outcome, statusText = "rejected", "INSUFFICIENT_STOCK"
			return nil, &InsufficientStockError{ProductID: l.ProductID, Available: p.Quantity, Requested: l.Quantity}
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		snapshots[i] = p
	}
	span.AddEvent("order.validated", trace.WithAttributes(attribute.String("order.total", total.String())))

	// Pass 2: local commit.
	orderID = uc.idGenerator.NewID()
	lines := make([]domain.LineItem, len(cmd.Lines))
	for i, l := range cmd.Lines {
		lines[i] = domain.LineItem{ID: uc.idGenerator.NewID(), ProductID: l.ProductID, Quantity: l.Quantity}
	}
	entity, derr := domain.New(orderID, cmd.ClientID, total, lines)
	if derr != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}
	if err := uc.repo.Save(ctx, entity); err != nil {
		outcome, statusText = "error", "REPO_SAVE_FAILED"
		return nil, wrapRepositoryError(err)
	}
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(entity.Status)),
	)
	span.AddEvent("order.committed")

	// From here on the order is durable; a caller going away must not stop the
	// decrements half way.
	postCommit := context.WithoutCancel(ctx)
	view := newOrderView(entity, snapshots)

	publishErr = uc.publish(postCommit, domain.NewOrderCreatedEvent(entity))

	// Pass 3: decrement stock in submitted order, stop at the first failure.
	for i, l := range entity.Lines {
		if _, aerr := uc.directory.AdjustQuantity(postCommit, l.ProductID, -l.Quantity); aerr != nil {
			outcome, statusText = "partial", "STOCK_DECREMENT_FAILED"
			pf := &PartialFailureError{
				Order:        entity.Clone(),
				Applied:      append([]domain.LineItem(nil), entity.Lines[:i]...),
				Failed:       DecrementFailure{Line: l, Err: aerr},
				NotAttempted: append([]domain.LineItem(nil), entity.Lines[i+1:]...),
			}
			logger.Warn("stock_decrement_failed",
				observability.F("order_id", orderID),
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("applied_lines", len(pf.Applied)),
				observability.F("not_attempted_lines", len(pf.NotAttempted)),
				observability.F("reason", product.FailureReason(aerr)),
			)
			if perr := uc.publish(postCommit, newStockDecrementFailedEvent(pf)); perr != nil {
				publishErr = errors.Join(publishErr, perr)
			}
			return view, pf
		}
		span.AddEvent("stock.decremented", trace.WithAttributes(
			attribute.String("product.id", l.ProductID),
			attribute.Int("quantity", l.Quantity),
		))
	}

	if publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}
	return view, nil
}

// publish is best-effort; its error never changes the outcome of the use case.
func (uc *CreateOrderUseCase) publish(ctx context.Context, event domoutbox.Event) error {
	if uc.publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := uc.publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", event.EventName()),
	)
	return err
}

func newStockDecrementFailedEvent(pf *PartialFailureError) domain.StockDecrementFailedEvent {
	return domain.StockDecrementFailedEvent{
		OrderID:      pf.Order.ID,
		ClientID:     pf.Order.ClientID,
		ProductID:    pf.Failed.Line.ProductID,
		Quantity:     pf.Failed.Line.Quantity,
		Reason:       product.FailureReason(pf.Failed.Err),
		Applied:      createdLines(pf.Applied),
		NotAttempted: createdLines(pf.NotAttempted),
		OccurredAt:   time.Now().UTC(),
	}
}

func createdLines(lines []domain.LineItem) []domain.CreatedLine {
	out := make([]domain.CreatedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.CreatedLine{LineItemID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
