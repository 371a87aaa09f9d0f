package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus collectors exported by the bot.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Audio reorder sessions
	SessionsTotal   *prometheus.CounterVec
	CommandsTotal   *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Thumbnails
	ThumbnailOps *prometheus.CounterVec

	// Telegram updates by kind
	Updates *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg and serves them from gatherer.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		SessionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "encoderbot_audioselect_sessions_total",
			Help: "Audio reorder sessions by outcome",
		}, []string{"outcome"}),
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "encoderbot_audioselect_commands_total",
			Help: "Audio reorder commands received by verb",
		}, []string{"verb"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "encoderbot_audioselect_active_sessions",
			Help: "Audio reorder sessions currently waiting for the user",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "encoderbot_audioselect_session_duration_seconds",
			Help:    "Time from session open to resolution",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~4 minutes
		}),
		ThumbnailOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "encoderbot_thumbnail_ops_total",
			Help: "Thumbnail store operations by kind",
		}, []string{"op"}),
		Updates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "encoderbot_updates_total",
			Help: "Telegram updates received by kind",
		}, []string{"kind"}),
	}
}

// SessionOpened marks a reorder session as waiting.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionClosed records the resolution of an opened session.
func (m *Metrics) SessionClosed(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionsTotal.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(took.Seconds())
}

// SessionSkipped records a session that never opened.
func (m *Metrics) SessionSkipped(outcome string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

// Command counts a received reorder command.
func (m *Metrics) Command(verb string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(verb).Inc()
}

// Thumbnail counts a thumbnail store operation.
func (m *Metrics) Thumbnail(op string) {
	if m == nil {
		return
	}
	m.ThumbnailOps.WithLabelValues(op).Inc()
}

// Update counts a received Telegram update.
func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(kind).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
