package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/latifaja/ecom-orders/internal/application"
	appOrder "github.com/latifaja/ecom-orders/internal/application/order"
	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

var errDuplicateRequest = errors.New("duplicate request: idempotency key already used")

// IdempotencyGuard rejects replays of POST /orders carrying the same Idempotency-Key.
type IdempotencyGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type createOrder = application.UseCase[appOrder.CreateOrderInput, *appOrder.OrderView]

type Handler struct {
	create createOrder
	query  *appOrder.QueryUseCase
	guard  IdempotencyGuard
	log    observability.Logger
	tel    observability.Observability
}

// NewHandler wires the order endpoints. guard may be nil to disable idempotency checks.
func NewHandler(
	create createOrder,
	query *appOrder.QueryUseCase,
	guard IdempotencyGuard,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		create: create,
		query:  query,
		guard:  guard,
		log:    tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:    tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Each route: Trace → request logger → HTTP metrics → access log → handler
	h.handle(r, http.MethodPost, "/orders", h.handleCreateOrder)
	h.handle(r, http.MethodGet, "/orders", h.handleListOrders)
	h.handle(r, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.handle(r, http.MethodGet, "/orders/client/{clientId}", h.handleListOrdersByClient)
	h.handle(r, http.MethodGet, "/health", h.handleHealth)

	return r
}

func (h *Handler) handle(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	chain := withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerTenantID) },
		)(
			withHTTPMetrics(
				h.tel.Metrics().Counter(observability.MHTTPRequests),
				h.tel.Metrics().Histogram(observability.MHTTPRequestDuration),
			)(
				withAccessLog(h.log)(handler),
			),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		chain.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	key := r.Header.Get(headerIdempotencyKey)
	if key != "" && h.guard != nil {
		seen, err := h.guard.Seen(r.Context(), key)
		switch {
		case err != nil:
			// fail open
			logctx.FromOr(r.Context(), h.log).Warn("idempotency_check_failed", observability.F("error", err))
			key = ""
		case seen:
			writeError(w, http.StatusConflict, errDuplicateRequest)
			return
		}
	}

	lines := make([]appOrder.LineInput, 0, len(req.Products))
	for _, p := range req.Products {
		lines = append(lines, appOrder.LineInput{ProductID: p.ProductID, Quantity: p.Quantity})
	}

	view, err := h.create.Execute(r.Context(), appOrder.CreateOrderInput{ClientID: req.ClientID, Lines: lines})
	if err != nil {
		var pf *appOrder.PartialFailureError
		if errors.As(err, &pf) {
			writePartialFailure(w, view, pf)
			return
		}
		if key != "" && h.guard != nil {
			if rerr := h.guard.Release(context.WithoutCancel(r.Context()), key); rerr != nil {
				logctx.FromOr(r.Context(), h.log).Warn("idempotency_release_failed", observability.F("error", rerr))
			}
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(view))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.query.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(view))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.query.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(views))
}

func (h *Handler) handleListOrdersByClient(w http.ResponseWriter, r *http.Request) {
	views, err := h.query.ListByClient(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(views))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writePartialFailure reports a committed order whose stock decrement stopped
// early. The order exists; the body says which lines were applied.
func writePartialFailure(w http.ResponseWriter, view *appOrder.OrderView, pf *appOrder.PartialFailureError) {
	body := partialFailureResponse{
		Error:        pf.Error(),
		Reason:       product.FailureReason(pf.Failed.Err),
		Applied:      toLineRefs(pf.Applied),
		FailedLine:   toLineRef(pf.Failed.Line),
		NotAttempted: toLineRefs(pf.NotAttempted),
	}
	if view != nil {
		body.Order = toOrderResponse(view)
	}
	writeJSON(w, http.StatusBadGateway, body)
}

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound     *appOrder.ProductNotFoundError
		insufficient *appOrder.InsufficientStockError
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":      err.Error(),
			"product_id": notFound.ProductID,
		})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      err.Error(),
			"product_id": insufficient.ProductID,
			"available":  insufficient.Available,
			"requested":  insufficient.Requested,
		})
	case errors.Is(err, appOrder.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, appOrder.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, appOrder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, appOrder.ErrDirectory):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
