// Package metrics exports Prometheus metrics for the reconciliation loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/bhandras/msgsync/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "msgsync"

// Collector implements engine.Observer and session.FetchObserver.
type Collector struct {
	registry *prometheus.Registry

	eventsApplied   *prometheus.CounterVec
	fetchesIssued   *prometheus.CounterVec
	fetchesComplete *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	viewsUpdated    prometheus.Counter
	connected       prometheus.Gauge
}

var _ engine.Observer = (*Collector)(nil)

// New returns a collector registered on its own registry, together with
// the Go and process collectors. version is exported as msgsync_build_info.
func New(version string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Server events applied, by event type.",
		}, []string{"type"}),
		fetchesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_issued_total",
			Help:      "Remote fetches requested by the engine, by kind.",
		}, []string{"kind"}),
		fetchesComplete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_completed_total",
			Help:      "Remote fetches applied, by kind and result.",
		}, []string{"kind", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of remote fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		viewsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_updated_total",
			Help:      "Views updated in place after a property change.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_stream_connected",
			Help:      "1 while the event stream is connected.",
		}),
	}

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Always 1; labelled with the running version.",
		ConstLabels: prometheus.Labels{"version": version},
	})
	buildInfo.Set(1)

	c.registry.MustRegister(
		buildInfo,
		c.eventsApplied,
		c.fetchesIssued,
		c.fetchesComplete,
		c.fetchDuration,
		c.viewsUpdated,
		c.connected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// EventsApplied implements engine.Observer.
func (c *Collector) EventsApplied(kind string, n int) {
	c.eventsApplied.WithLabelValues(kind).Add(float64(n))
}

// FetchIssued implements engine.Observer.
func (c *Collector) FetchIssued(kind engine.FetchKind) {
	c.fetchesIssued.WithLabelValues(kind.String()).Inc()
}

// FetchCompleted implements engine.Observer.
func (c *Collector) FetchCompleted(kind engine.FetchKind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.fetchesComplete.WithLabelValues(kind.String(), result).Inc()
}

// ViewsUpdated implements engine.Observer.
func (c *Collector) ViewsUpdated(n int) {
	c.viewsUpdated.Add(float64(n))
}

// FetchDuration records the latency of one fetch.
func (c *Collector) FetchDuration(kind engine.FetchKind, d time.Duration) {
	c.fetchDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

// SetConnected records the event stream's connection state.
func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}
