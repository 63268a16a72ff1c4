// Package metrics exposes the gateway's Prometheus instrumentation,
// sourced the way the example pack's services reach for
// prometheus/client_golang for their own metrics endpoints.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every gauge/counter the gateway exports. Only the
// counters are updated (through the space.MetricsSink methods below); the
// four gauges are registered and exported but nothing in the gateway sets
// them, so they read 0.
type Metrics struct {
	ParticipantsConnected prometheus.Gauge
	ActiveStreams         prometheus.Gauge
	PendingGrants         prometheus.Gauge
	PendingProposals      prometheus.Gauge

	EnvelopesRouted    *prometheus.CounterVec
	CapabilityDenials  prometheus.Counter
	RateLimitDrops     prometheus.Counter

	registry *prometheus.Registry
}

// New constructs and registers all gateway metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		ParticipantsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mew_participants_connected",
			Help: "Number of participants currently connected across all spaces.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mew_active_streams",
			Help: "Number of streams not in the closed state.",
		}),
		PendingGrants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mew_pending_grants",
			Help: "Number of capability grants currently tracked for revocation.",
		}),
		PendingProposals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mew_pending_proposals",
			Help: "Number of proposals awaiting fulfillment, rejection, or expiry.",
		}),
		EnvelopesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mew_envelopes_routed_total",
			Help: "Total envelopes successfully routed, by kind.",
		}, []string{"kind"}),
		CapabilityDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mew_capability_denials_total",
			Help: "Total envelopes rejected by the capability matcher.",
		}),
		RateLimitDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mew_rate_limit_drops_total",
			Help: "Total envelopes rejected by per-participant rate limiting.",
		}),
		registry: reg,
	}
	reg.MustRegister(
		m.ParticipantsConnected, m.ActiveStreams, m.PendingGrants, m.PendingProposals,
		m.EnvelopesRouted, m.CapabilityDenials, m.RateLimitDrops,
	)
	return m
}

// EnvelopeRouted implements space.MetricsSink.
func (m *Metrics) EnvelopeRouted(kind string) { m.EnvelopesRouted.WithLabelValues(kind).Inc() }

// CapabilityDenied implements space.MetricsSink.
func (m *Metrics) CapabilityDenied() { m.CapabilityDenials.Inc() }

// RateLimited implements space.MetricsSink.
func (m *Metrics) RateLimited() { m.RateLimitDrops.Inc() }

// Handler returns the http.Handler serving the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
