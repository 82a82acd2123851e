package telemetry

import (
	"context"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records one observation per served request, both as Prometheus
// collectors and as OpenTelemetry instruments.
type Metrics struct {
	requests *prometheus.CounterVec
	bytes    prometheus.Counter
	duration prometheus.Histogram

	otelRequests metric.Int64Counter
	otelBytes    metric.Int64Histogram
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	factory := promauto.With(reg)
	meter := otel.Meter(ScopeName)

	otelRequests, err := meter.Int64Counter("httpsrvdev.requests",
		metric.WithDescription("Requests answered, by method and status"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	otelBytes, err := meter.Int64Histogram("httpsrvdev.response.size",
		metric.WithDescription("Bytes written per response"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "httpsrvdev_requests_total",
			Help: "Requests answered, by method and status.",
		}, []string{"method", "status"}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "httpsrvdev_response_bytes_total",
			Help: "Bytes written to clients.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "httpsrvdev_request_duration_seconds",
			Help:    "Time from parsed request to closed connection.",
			Buckets: prometheus.DefBuckets,
		}),
		otelRequests: otelRequests,
		otelBytes:    otelBytes,
	}, nil
}

func (m *Metrics) Observe(ctx context.Context, method string, status uint16, bytes int64, elapsed time.Duration) {
	code := strconv.Itoa(int(status))

	m.requests.WithLabelValues(method, code).Inc()
	m.bytes.Add(float64(bytes))
	m.duration.Observe(elapsed.Seconds())

	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", int(status)),
	)
	m.otelRequests.Add(ctx, 1, attrs)
	m.otelBytes.Record(ctx, bytes, attrs)
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func MetricsHandler(reg *prometheus.Registry) nethttp.Handler {
	return otelhttp.NewHandler(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		"metrics",
	)
}
