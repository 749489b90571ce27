package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/observability"
	"github.com/latifaja/ecom-orders/internal/observability/logctx"
)

const (
	peerInventory  = "inventory"
	defaultTimeout = 2500 * time.Millisecond
	maxErrorBody   = 4 << 10

	endpointFindOne        = "GET /products/{id}"
	endpointFindAll        = "GET /products"
	endpointAdjustQuantity = "PUT /products/{id}/quantity"
)

// Client talks to the inventory service over HTTP. It implements product.Directory.
type Client struct {
	baseURL string
	http    *http.Client
	log     observability.Logger

	extCounter   observability.Counter                   // external_requests_total{peer,endpoint,outcome}
	extDurations map[string]observability.BoundHistogram // external_request_duration_seconds{peer,endpoint}
}

type Option func(*Client)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func NewClient(baseURL string, timeout time.Duration, tel observability.Observability, opts ...Option) *Client {
	if tel == nil {
		tel = observability.Nop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hist := tel.Metrics().Histogram(observability.MExternalRequestDuration)
	durations := make(map[string]observability.BoundHistogram, 3)
	for _, ep := range []string{endpointFindOne, endpointFindAll, endpointAdjustQuantity} {
		durations[ep] = hist.Bind(observability.L("peer", peerInventory), observability.L("endpoint", ep))
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:          tel.Logger().With(observability.F("component", "directory_client")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extDurations: durations,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type quantityChange struct {
	QuantityChange int `json:"quantityChange"`
}

func (c *Client) FindOne(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	if err := c.do(ctx, endpointFindOne, http.MethodGet, "/products/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) FindAll(ctx context.Context) ([]product.Product, error) {
	var ps []product.Product
	if err := c.do(ctx, endpointFindAll, http.MethodGet, "/products", nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// AdjustQuantity is not idempotent; callers must not retry it blindly.
func (c *Client) AdjustQuantity(ctx context.Context, id string, delta int) (*product.Product, error) {
	var p product.Product
	path := "/products/" + url.PathEscape(id) + "/quantity"
	if err := c.do(ctx, endpointAdjustQuantity, http.MethodPut, path, quantityChange{QuantityChange: delta}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) (err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = product.FailureReason(err)
			logctx.FromOr(ctx, c.log).Warn("directory_request_failed",
				observability.F("endpoint", endpoint),
				observability.F("path", path),
				observability.F("error", err),
			)
		}
		c.extCounter.Add(1,
			observability.L("peer", peerInventory),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		c.extDurations[endpoint].Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %w", product.ErrUnavailable, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", product.ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", product.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classify(resp.StatusCode, string(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", product.ErrUnavailable, endpoint, err)
	}
	return nil
}

// classify maps an error response onto the directory errors. The inventory
// service reports both missing products and the stock floor as plain errors,
// sometimes with a 500, so the body is consulted as well as the status.
func classify(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusNotFound, strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: status %d", product.ErrNotFound, status)
	case strings.Contains(lower, "below 0"), strings.Contains(lower, "below zero"),
		status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d: %s", product.ErrNegativeStock, status, strings.TrimSpace(body))
	default:
		return fmt.Errorf("%w: status %d: %s", product.ErrUnavailable, status, strings.TrimSpace(body))
	}
}

var _ product.Directory = (*Client)(nil)

