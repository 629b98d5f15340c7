package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the prometheus collectors used across the service. All
// methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	providerRequests  *prometheus.CounterVec
	aggregateDuration prometheus.Histogram
	aggregateQuotes   prometheus.Gauge
	indexChunks       prometheus.Gauge
	chatTurns         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finassist",
			Name:      "provider_requests_total",
			Help:      "External provider calls by provider, call and outcome.",
		}, []string{"provider", "call", "outcome"}),
		aggregateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finassist",
			Name:      "aggregate_duration_seconds",
			Help:      "Wall time of a watch-list aggregation run.",
			Buckets:   prometheus.DefBuckets,
		}),
		aggregateQuotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "finassist",
			Name:      "aggregate_quotes",
			Help:      "Quotes returned by the last aggregation run.",
		}),
		indexChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "finassist",
			Name:      "index_chunks",
			Help:      "Chunks held by the most recently built document index.",
		}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finassist",
			Name:      "chat_turns_total",
			Help:      "Chat turns answered, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.providerRequests, m.aggregateDuration, m.aggregateQuotes, m.indexChunks, m.chatTurns)
	}
	return m
}

func (m *Metrics) ProviderCall(provider, call string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "unavailable"
	}
	m.providerRequests.WithLabelValues(provider, call, outcome).Inc()
}

func (m *Metrics) Aggregated(started time.Time, quotes int) {
	if m == nil {
		return
	}
	m.aggregateDuration.Observe(time.Since(started).Seconds())
	m.aggregateQuotes.Set(float64(quotes))
}

func (m *Metrics) IndexBuilt(chunks int) {
	if m == nil {
		return
	}
	m.indexChunks.Set(float64(chunks))
}

func (m *Metrics) ChatTurn(outcome string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(outcome).Inc()
}
