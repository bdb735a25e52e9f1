// Package metrics exposes daemon counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the daemon collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	previewRequests *prometheus.CounterVec
	previewLatency  prometheus.Histogram
	liveEvents      *prometheus.CounterVec
	liveReconnects  prometheus.Counter
	revealed        prometheus.Counter
	historyPages    *prometheus.CounterVec
	outboxResults   *prometheus.CounterVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		previewRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "preview_requests_total",
			Help:      "Link preview lookups by result (hit, miss, error).",
		}, []string{"result"}),
		previewLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "twin",
			Name:      "preview_fetch_seconds",
			Help:      "Upstream metadata fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		liveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "live_events_total",
			Help:      "Live channel payloads by outcome (forwarded, dropped).",
		}, []string{"outcome"}),
		liveReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "live_reconnects_total",
			Help:      "Live channel reconnect attempts.",
		}),
		revealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "reveal_segments_total",
			Help:      "Bot answer segments revealed.",
		}),
		historyPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "history_pages_total",
			Help:      "History page loads by result (ok, error).",
		}, []string{"result"}),
		outboxResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twin",
			Name:      "outbox_results_total",
			Help:      "Outbound chat messages by final status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.previewRequests,
		m.previewLatency,
		m.liveEvents,
		m.liveReconnects,
		m.revealed,
		m.historyPages,
		m.outboxResults,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PreviewResult(result string) {
	if m != nil {
		m.previewRequests.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObservePreviewFetch(seconds float64) {
	if m != nil {
		m.previewLatency.Observe(seconds)
	}
}

func (m *Metrics) LiveEvent(outcome string) {
	if m != nil {
		m.liveEvents.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) LiveReconnect() {
	if m != nil {
		m.liveReconnects.Inc()
	}
}

func (m *Metrics) SegmentRevealed() {
	if m != nil {
		m.revealed.Inc()
	}
}

func (m *Metrics) HistoryPage(result string) {
	if m != nil {
		m.historyPages.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) OutboxResult(status string) {
	if m != nil {
		m.outboxResults.WithLabelValues(status).Inc()
	}
}
