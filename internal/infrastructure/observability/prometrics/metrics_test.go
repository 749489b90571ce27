package prometrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/latifaja/ecom-orders/internal/observability"
)

func TestCounterAndBoundCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "", "")

	c := r.Counter("widgets_total", "Widgets.", "kind")
	c.Add(2, observability.L("kind", "a"))
	c.Bind(observability.L("kind", "a")).Add(1)
	c.Add(5, observability.L("kind", "b"))

	want := `
# HELP widgets_total Widgets.
# TYPE widgets_total counter
widgets_total{kind="a"} 3
widgets_total{kind="b"} 5
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "widgets_total"); err != nil {
		t.Fatal(err)
	}
}

func TestHistogramDefaultsBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "shop", "orders")

	h := r.Histogram("latency_seconds", "Latency.", nil, "op")
	h.Observe(0.2, observability.L("op", "x"))
	h.Bind(observability.L("op", "x")).Observe(0.4)

	if n, err := testutil.GatherAndCount(reg, "shop_orders_latency_seconds"); err != nil || n != 1 {
		t.Fatalf("GatherAndCount() = %d, %v; want 1 series", n, err)
	}
}

func TestRegisteringTwiceReusesCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	New(reg, "", "").Counter("dup_total", "Dup.", "k").Add(1, observability.L("k", "v"))
	// a second registry wrapper on the same registerer must not panic
	New(reg, "", "").Counter("dup_total", "Dup.", "k").Add(1, observability.L("k", "v"))

	want := `
# HELP dup_total Dup.
# TYPE dup_total counter
dup_total{k="v"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "dup_total"); err != nil {
		t.Fatal(err)
	}
}

func TestStandardRegistersEveryKey(t *testing.T) {
	inst := Standard(New(prometheus.NewRegistry(), "", ""))

	for _, k := range []observability.MetricKey{
		observability.MUsecaseRequests,
		observability.MHTTPRequests,
		observability.MExternalRequests,
		observability.MStockDiscrepancies,
	} {
		if inst.Counters[k] == nil {
			t.Errorf("counter %s missing", k)
		}
	}
	for _, k := range []observability.MetricKey{
		observability.MUsecaseDuration,
		observability.MHTTPRequestDuration,
		observability.MExternalRequestDuration,
	} {
		if inst.Histograms[k] == nil {
			t.Errorf("histogram %s missing", k)
		}
	}
}
