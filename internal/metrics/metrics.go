// Package metrics defines the Prometheus collectors shared by the web
// interface and the announcer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeMissed  = "missed"
)

// Metrics holds the application collectors.
type Metrics struct {
	announcements       *prometheus.CounterVec
	colorLookupFailures prometheus.Counter
	configWrites        *prometheus.CounterVec
	restartSignals      *prometheus.CounterVec
	nextDue             prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		announcements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "announcer_announcements_total",
			Help: "Total number of scheduled announcements by type and outcome.",
		}, []string{"kind", "outcome"}),
		colorLookupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "announcer_color_lookup_failures_total",
			Help: "Total number of color lookups that fell back to the default color.",
		}),
		configWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "announcer_config_writes_total",
			Help: "Total number of venue config writes by operation and outcome.",
		}, []string{"op", "outcome"}),
		restartSignals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "announcer_restart_signals_total",
			Help: "Total number of announcer restart requests by outcome.",
		}, []string{"outcome"}),
		nextDue: f.NewGauge(prometheus.GaugeOpts{
			Name: "announcer_next_due_timestamp_seconds",
			Help: "Unix time of the next scheduled announcement, 0 when none is scheduled.",
		}),
	}
}

// NewNop returns collectors registered nowhere, for tests and callers that do not export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Announcement counts one scheduled announcement.
func (m *Metrics) Announcement(kind, outcome string) {
	m.announcements.WithLabelValues(kind, outcome).Inc()
}

// ColorLookupFailure counts a color lookup that fell back.
func (m *Metrics) ColorLookupFailure() {
	m.colorLookupFailures.Inc()
}

// ConfigWrite counts one venue config write.
func (m *Metrics) ConfigWrite(op string, err error) {
	m.configWrites.WithLabelValues(op, outcome(err)).Inc()
}

// RestartSignal counts one restart request.
func (m *Metrics) RestartSignal(err error) {
	m.restartSignals.WithLabelValues(outcome(err)).Inc()
}

// NextDue records the next due instant; the zero time clears it.
func (m *Metrics) NextDue(at time.Time) {
	if at.IsZero() {
		m.nextDue.Set(0)
		return
	}
	m.nextDue.Set(float64(at.Unix()))
}

// Handler exposes the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
