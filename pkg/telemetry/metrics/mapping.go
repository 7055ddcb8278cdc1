package metrics

import (
	"mercator-hq/charter/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// MappingMetrics tracks control mapping.
//
// Metrics:
//   - control_mappings_total{framework,status,retained}
//   - mapping_confidence{framework}
//   - extraction_rule_errors_total{framework}
//   - gaps_total{framework,priority}
type MappingMetrics struct {
	mappingsTotal   *prometheus.CounterVec
	confidence      *prometheus.HistogramVec
	ruleErrorsTotal *prometheus.CounterVec
	gapsTotal       *prometheus.CounterVec
}

// NewMappingMetrics creates and registers mapping metrics.
func NewMappingMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *MappingMetrics {
	mm := &MappingMetrics{
		mappingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "control_mappings_total",
				Help:      "Total number of scored controls",
			},
			[]string{"framework", "status", "retained"},
		),
		confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "mapping_confidence",
				Help:      "Confidence of scored controls",
				// aligned with the status thresholds
				Buckets: []float64{0.1, 0.3, 0.5, 0.8, 1.0},
			},
			[]string{"framework"},
		),
		ruleErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "extraction_rule_errors_total",
				Help:      "Total number of extraction rules that could not be evaluated",
			},
			[]string{"framework"},
		),
		gapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "gaps_total",
				Help:      "Total number of reported gaps",
			},
			[]string{"framework", "priority"},
		),
	}

	registry.MustRegister(mm.mappingsTotal, mm.confidence, mm.ruleErrorsTotal, mm.gapsTotal)
	return mm
}

// RecordMapping records one scored control.
func (mm *MappingMetrics) RecordMapping(frameworkID, status string, confidence float64, retained bool) {
	r := "false"
	if retained {
		r = "true"
	}
	mm.mappingsTotal.WithLabelValues(frameworkID, status, r).Inc()
	mm.confidence.WithLabelValues(frameworkID).Observe(confidence)
}

// RecordRuleError records one failed rule evaluation.
func (mm *MappingMetrics) RecordRuleError(frameworkID string) {
	mm.ruleErrorsTotal.WithLabelValues(frameworkID).Inc()
}

// RecordGap records one gap.
func (mm *MappingMetrics) RecordGap(frameworkID, priority string) {
	mm.gapsTotal.WithLabelValues(frameworkID, priority).Inc()
}
