// Package metrics provides Prometheus metrics for radhttpd.
//
// Metrics live on their own registry, not the global default one.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "radhttpd"

// DurationBuckets are buckets for request durations in seconds. Lookups are
// local SQLite reads and socket round trips, so most land well under 100ms.
var DurationBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// Metrics holds all radhttpd metrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StoreErrors     *prometheus.CounterVec
	NodeState       *prometheus.GaugeVec
	BuildInfo       *prometheus.GaugeVec
}

// New creates and registers all metrics on a fresh registry. Go runtime and
// process collectors are included.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration by route",
			Buckets:   DurationBuckets,
		}, []string{"route"}),

		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Server-side errors returned to clients, by error kind",
		}, []string{"kind"}),

		NodeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_state",
			Help:      "Last observed lifecycle state of the local node (1 for the current state)",
		}, []string{"state"}),

		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information, always 1",
		}, []string{"version", "git_head"}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.StoreErrors,
		m.NodeState,
		m.BuildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveError records a server-side error of the given kind.
func (m *Metrics) ObserveError(kind string) {
	m.StoreErrors.WithLabelValues(kind).Inc()
}

// SetNodeState marks state as the current node state.
func (m *Metrics) SetNodeState(state string) {
	m.NodeState.Reset()
	m.NodeState.WithLabelValues(state).Set(1)
}

// SetBuildInfo publishes the running version.
func (m *Metrics) SetBuildInfo(version, gitHead string) {
	m.BuildInfo.WithLabelValues(version, gitHead).Set(1)
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
