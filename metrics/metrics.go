// Package metrics exposes the consensus core's health surface as
// Prometheus collectors, following the teacher lineage's
// metrics/metrics.go shape: a thin struct wrapping a prometheus.Registerer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the consensus core's Prometheus collectors.
type Metrics struct {
	Registry prometheus.Registerer

	ActiveRounds     prometheus.Gauge
	LastFinalized    prometheus.Gauge
	ViewChanges      prometheus.Counter
	Finalizations    prometheus.Counter
	BehindDetections prometheus.Counter
	SlashingEvents   *prometheus.CounterVec
	EpochTransitions prometheus.Counter
}

// NewMetrics builds and registers the consensus core's collectors against
// reg. Registration failures are deliberately ignored for duplicate
// registration in tests, mirroring the teacher's Register helper which
// simply returns the error to an indifferent caller.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Registry: reg,
		ActiveRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rounds",
			Help:      "Number of consensus rounds currently open in the pipeline.",
		}),
		LastFinalized: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_finalized_block",
			Help:      "Height of the highest finalized block.",
		}),
		ViewChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_changes_total",
			Help:      "Number of view changes that reached quorum.",
		}),
		Finalizations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Number of blocks finalized.",
		}),
		BehindDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "behind_detections_total",
			Help:      "Number of times the engine detected it was behind the pipeline window.",
		}),
		SlashingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slashing_events_total",
			Help:      "Number of slashing events applied, labeled by reason.",
		}, []string{"reason"}),
		EpochTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epoch_transitions_total",
			Help:      "Number of epoch boundary transitions processed.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.ActiveRounds, m.LastFinalized, m.ViewChanges, m.Finalizations,
		m.BehindDetections, m.SlashingEvents, m.EpochTransitions,
	} {
		_ = reg.Register(c)
	}
	return m
}
