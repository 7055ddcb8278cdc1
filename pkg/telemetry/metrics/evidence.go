package metrics

import (
	"mercator-hq/charter/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EvidenceMetrics tracks evidence record writes.
//
// Metrics:
//   - evidence_writes_total{kind,result}
type EvidenceMetrics struct {
	writesTotal *prometheus.CounterVec
}

// NewEvidenceMetrics creates and registers evidence metrics.
func NewEvidenceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvidenceMetrics {
	em := &EvidenceMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evidence_writes_total",
				Help:      "Total number of evidence record writes",
			},
			[]string{"kind", "result"},
		),
	}
	registry.MustRegister(em.writesTotal)
	return em
}

// RecordWrite records one write.
func (em *EvidenceMetrics) RecordWrite(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	em.writesTotal.WithLabelValues(kind, result).Inc()
}
