// Package metrics exposes Prometheus counters for bot updates and report
// components.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	reg prometheus.Gatherer

	UpdatesReceived prometheus.Counter
	Requests        *prometheus.CounterVec   // by command
	ComponentRuns   *prometheus.CounterVec   // by component
	ComponentErrors *prometheus.CounterVec   // by component, kind
	ComponentTime   *prometheus.HistogramVec // by component
	Replies         *prometheus.CounterVec   // by kind: text, image, document
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		UpdatesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_updates_received_total",
			Help: "Total number of Telegram updates received",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_analysis_requests_total",
			Help: "Analysis requests by command",
		}, []string{"command"}),
		ComponentRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_component_runs_total",
			Help: "Report components executed",
		}, []string{"component"}),
		ComponentErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_component_errors_total",
			Help: "Report component failures by error kind",
		}, []string{"component", "kind"}),
		ComponentTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebot_component_duration_seconds",
			Help:    "Time spent in each report component",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"component"}),
		Replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_replies_total",
			Help: "Messages sent back to users by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Update() {
	if m == nil {
		return
	}
	m.UpdatesReceived.Inc()
}

func (m *Metrics) Request(command string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(command).Inc()
}

// Component records one component run; kind is empty on success.
func (m *Metrics) Component(component string, d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.ComponentRuns.WithLabelValues(component).Inc()
	m.ComponentTime.WithLabelValues(component).Observe(d.Seconds())
	if kind != "" {
		m.ComponentErrors.WithLabelValues(component, kind).Inc()
	}
}

func (m *Metrics) Reply(kind string) {
	if m == nil {
		return
	}
	m.Replies.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
