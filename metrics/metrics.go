package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pool and HTTP collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	JobsCreated       prometheus.Counter
	Payments          *prometheus.CounterVec
	Distributions     *prometheus.CounterVec
	DistributedAmount prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		JobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabpool",
			Name:      "jobs_created_total",
			Help:      "Payment jobs created.",
		}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabpool",
			Name:      "payments_total",
			Help:      "Payment attempts by result code.",
		}, []string{"result"}),
		Distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabpool",
			Name:      "distributions_total",
			Help:      "Distribution attempts by result code.",
		}, []string{"result"}),
		DistributedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tabpool",
			Name:      "distributed_amount_total",
			Help:      "Smallest units paid out to recipients.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabpool",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tabpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.JobsCreated,
		m.Payments,
		m.Distributions,
		m.DistributedAmount,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Result labels successful calls "ok" and failures by error code.
func Result(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
