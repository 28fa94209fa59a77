package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marocdeals/marocdeals_api/internal/httpx"
)

const namespace = "marocdeals"

// Metrics owns a registry with the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	codesIssued      prometheus.Counter
	codeChecks       *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	accountsCreated  prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "codes_issued_total",
			Help:      "Verification codes issued.",
		}),
		codeChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "code_checks_total",
			Help:      "Verification code checks by outcome.",
		}, []string{"outcome"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "delivery_failures_total",
			Help:      "Verification codes that could not be delivered.",
		}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signup",
			Name:      "accounts_created_total",
			Help:      "Accounts created after verification.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.codesIssued, m.codeChecks, m.deliveryFailures, m.accountsCreated,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) CodeIssued() { m.codesIssued.Inc() }
func (m *Metrics) DeliveryFailed() { m.deliveryFailures.Inc() }
func (m *Metrics) AccountCreated() { m.accountsCreated.Inc() }

// CodeChecked counts a check outcome; "ok" for success, else the reason code.
func (m *Metrics) CodeChecked(outcome string) { m.codeChecks.WithLabelValues(outcome).Inc() }

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := httpx.StatusOf(err, c.Response().StatusCode())
		route := c.Route().Path
		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
