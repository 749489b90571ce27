package order

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/latifaja/ecom-orders/internal/domain/order"
	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	useCaseOrderGet          = "order.get"
	useCaseOrderList         = "order.list"
	useCaseOrderListByClient = "order.list_by_client"
)

// QueryUseCase builds read views of stored orders. Product details are always
// fetched live from the directory; nothing about a product is cached.
type QueryUseCase struct {
	repo      domain.Repository
	directory product.Directory
	tracer    observability.Tracer

	log        observability.Logger
	reqCounter observability.Counter
	durations  map[string]observability.BoundHistogram
}

func NewQueryUseCase(repo domain.Repository, directory product.Directory, tel observability.Observability) *QueryUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	hist := tel.Metrics().Histogram(observability.MUsecaseDuration)
	durations := make(map[string]observability.BoundHistogram, 3)
	for _, uc := range []string{useCaseOrderGet, useCaseOrderList, useCaseOrderListByClient} {
		durations[uc] = hist.Bind(observability.L("use_case", uc))
	}
	return &QueryUseCase{
		repo:       repo,
		directory:  directory,
		tracer:     tel.Tracer(),
		log:        tel.Logger().With(observability.F("service", orderService)),
		reqCounter: tel.Metrics().Counter(observability.MUsecaseRequests),
		durations:  durations,
	}
}

func (q *QueryUseCase) Get(ctx context.Context, id string) (_ *OrderView, err error) {
	ctx, done := q.begin(ctx, useCaseOrderGet, "GetOrder", attribute.String("order.id", id))
	defer func() { done(err) }()

	if strings.TrimSpace(id) == "" {
		return nil, newValidation("order id is required")
	}
	o, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return q.project(ctx, o)
}

func (q *QueryUseCase) List(ctx context.Context) (_ []*OrderView, err error) {
	ctx, done := q.begin(ctx, useCaseOrderList, "ListOrders")
	defer func() { done(err) }()

	orders, err := q.repo.FindAll(ctx)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return q.projectAll(ctx, orders)
}

func (q *QueryUseCase) ListByClient(ctx context.Context, clientID string) (_ []*OrderView, err error) {
	ctx, done := q.begin(ctx, useCaseOrderListByClient, "ListOrdersByClient", attribute.String("order.client_id", clientID))
	defer func() { done(err) }()

	orders, err := q.repo.FindByClient(ctx, clientID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return q.projectAll(ctx, orders)
}

func (q *QueryUseCase) projectAll(ctx context.Context, orders []*domain.Order) ([]*OrderView, error) {
	views := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		v, err := q.project(ctx, o)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// project re-fetches every line's product. A product deleted since the order was
// placed yields a nil product on that line instead of failing the read.
func (q *QueryUseCase) project(ctx context.Context, o *domain.Order) (*OrderView, error) {
	products := make([]*product.Product, len(o.Lines))
	for i, l := range o.Lines {
		p, err := q.directory.FindOne(ctx, l.ProductID)
		switch {
		case err == nil:
			products[i] = p
		case errors.Is(err, product.ErrNotFound):
			logctx.FromOr(ctx, q.log).Debug("line_product_missing",
				observability.F("order_id", o.ID),
				observability.F("product_id", l.ProductID),
			)
		default:
			return nil, wrapDirectoryError(err)
		}
	}
	return newOrderView(o, products), nil
}

// begin opens the span and returns a closer that records RED metrics and the
// use_case_done log line.
func (q *QueryUseCase) begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, logger := logctx.Enrich(ctx, q.log, observability.F("use_case", useCase))
	ctx, span := q.tracer.Start(ctx, spanPrefix+spanName, append(attrs, attribute.String("use_case", useCase))...)
	start := time.Now()

	return ctx, func(err error) {
		lat := time.Since(start).Seconds()
		outcome, statusText := "success", "OK"
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound):
			outcome, statusText = "rejected", "ORDER_NOT_FOUND"
		case errors.Is(err, ErrValidation):
			outcome, statusText = "rejected", "VALIDATION_FAILED"
		case errors.Is(err, ErrDirectory):
			outcome, statusText = "error", "DIRECTORY_LOOKUP_FAILED"
		default:
			outcome, statusText = "error", "REPO_READ_FAILED"
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		q.reqCounter.Add(1, observability.L("use_case", useCase), observability.L("outcome", outcome))
		q.durations[useCase].Observe(lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}
}
