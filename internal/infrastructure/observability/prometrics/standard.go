package prometrics

import "github.com/latifaja/ecom-orders/internal/observability"

// Instruments groups the service's metrics by key, ready for the observability provider.
type Instruments struct {
	Counters   map[observability.MetricKey]observability.Counter
	Histograms map[observability.MetricKey]observability.Histogram
}

// Standard registers every metric the service emits.
func Standard(r Registry) Instruments {
	return Instruments{
		Counters: map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
				"Total number of use case invocations.", "use_case", "outcome"),
			observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
				"Total number of HTTP requests.", "method", "route", "status"),
			observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
				"Calls made to collaborating services and the event bus.", "peer", "endpoint", "outcome"),
			observability.MStockDiscrepancies: r.Counter(string(observability.MStockDiscrepancies),
				"Orders whose stock decrement pass did not complete.", "reason"),
		},
		Histograms: map[observability.MetricKey]observability.Histogram{
			observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
				"Duration of use case execution in seconds.", nil, "use_case"),
			observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
				"Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
			observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
				"Duration of calls to collaborating services in seconds.", nil, "peer", "endpoint"),
		},
	}
}
