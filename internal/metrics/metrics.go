// Package metrics exposes Prometheus instrumentation for the memory system.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one memory system instance.
type Metrics struct {
	Stores         prometheus.Counter
	StoresRejected prometheus.Counter
	Retrievals     *prometheus.CounterVec
	Contradictions prometheus.Counter
	Escalations    prometheus.Counter

	ActiveMemories       prometheus.Gauge
	EpisodicTraces       prometheus.Gauge
	PersistenceDegraded  prometheus.Gauge
	RetrievalTokens      prometheus.Histogram
}

// New creates the collectors and registers them on reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a private
// registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Stores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "memory_stores_total",
			Help:      "Long-term memory items accepted for storage.",
		}),
		StoresRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "memory_stores_rejected_total",
			Help:      "Store attempts rejected by the deny-list or dedup.",
		}),
		Retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "retrievals_total",
			Help:      "Gated retrievals by intent.",
		}, []string{"intent"}),
		Contradictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "contradictions_total",
			Help:      "Contradictions detected against stored memory.",
		}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strata",
			Name:      "policy_escalations_total",
			Help:      "Policy escalations to conservative.",
		}),
		ActiveMemories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "strata",
			Name:      "active_memories",
			Help:      "Active items in long-term memory.",
		}),
		EpisodicTraces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "strata",
			Name:      "episodic_traces",
			Help:      "Traces currently retained in the episodic tier.",
		}),
		PersistenceDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "strata",
			Name:      "persistence_degraded",
			Help:      "1 when the snapshot breaker is open or the last save failed.",
		}),
		RetrievalTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "strata",
			Name:      "retrieval_tokens",
			Help:      "Token cost of retrieval results.",
			Buckets:   prometheus.ExponentialBuckets(32, 2, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Stores, m.StoresRejected, m.Retrievals, m.Contradictions,
			m.Escalations, m.ActiveMemories, m.EpisodicTraces,
			m.PersistenceDegraded, m.RetrievalTokens,
		)
	}
	return m
}

// SetDegraded maps the breaker state onto the gauge.
func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.PersistenceDegraded.Set(1)
	} else {
		m.PersistenceDegraded.Set(0)
	}
}
