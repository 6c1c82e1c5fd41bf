package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and dispatch flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	linksEnqueuedTotal     *prometheus.CounterVec
	pendingLinks           prometheus.Gauge
	batchesDispatchedTotal *prometheus.CounterVec
	dispatchFailedTotal    *prometheus.CounterVec
	dispatchDuration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linkrelay",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "linkrelay",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		linksEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linkrelay",
				Name:      "links_enqueued_total",
				Help:      "Total number of enqueue attempts by result (added, duplicate, capacity).",
			},
			[]string{"result"},
		),
		pendingLinks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "linkrelay",
				Name:      "pending_links",
				Help:      "Current number of links waiting in the pending queue.",
			},
		),
		batchesDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linkrelay",
				Name:      "batches_dispatched_total",
				Help:      "Total number of batches dispatched and delivered by destination label.",
			},
			[]string{"label"},
		),
		dispatchFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "linkrelay",
				Name:      "dispatch_failed_total",
				Help:      "Total number of batch deliveries that failed after the sent transition.",
			},
			[]string{"label", "reason"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "linkrelay",
				Name:      "dispatch_duration_seconds",
				Help:      "Batch delivery duration in seconds grouped by destination label.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"label"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.linksEnqueuedTotal,
		m.pendingLinks,
		m.batchesDispatchedTotal,
		m.dispatchFailedTotal,
		m.dispatchDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncLinkEnqueued(result string) {
	if m == nil {
		return
	}
	resultLabel := strings.TrimSpace(strings.ToLower(result))
	if resultLabel == "" {
		resultLabel = "unknown"
	}
	m.linksEnqueuedTotal.WithLabelValues(resultLabel).Inc()
}

func (m *Metrics) SetPendingLinks(count float64) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.pendingLinks.Set(count)
}

func (m *Metrics) IncBatchDispatched(label string) {
	if m == nil {
		return
	}
	m.batchesDispatchedTotal.WithLabelValues(normalizeLabel(label)).Inc()
}

func (m *Metrics) IncDispatchFailed(label string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.dispatchFailedTotal.WithLabelValues(normalizeLabel(label), reasonLabel).Inc()
}

func (m *Metrics) ObserveDispatchDuration(label string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(label)).Observe(seconds)
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

// normalizeLabel keeps destination labels as stored but guards the empty
// case so collectors never see a blank label value.
func normalizeLabel(label string) string {
	normalized := strings.TrimSpace(label)
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
