package metrics

import (
	"mercator-hq/charter/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LibraryMetrics tracks the clause library.
//
// Metrics:
//   - library_reloads_total{result}
//   - library_entries{kind}: size of the current snapshot
//   - clause_saves_total{result}
type LibraryMetrics struct {
	reloadsTotal     *prometheus.CounterVec
	entries          *prometheus.GaugeVec
	clauseSavesTotal *prometheus.CounterVec
}

// NewLibraryMetrics creates and registers library metrics.
func NewLibraryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LibraryMetrics {
	lm := &LibraryMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "library_reloads_total",
				Help:      "Total number of clause library reloads",
			},
			[]string{"result"},
		),
		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "library_entries",
				Help:      "Number of entries in the current library snapshot",
			},
			[]string{"kind"},
		),
		clauseSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "clause_saves_total",
				Help:      "Total number of clause save attempts",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(lm.reloadsTotal, lm.entries, lm.clauseSavesTotal)
	return lm
}

// RecordReload records a reload. Entry gauges only move on success.
func (lm *LibraryMetrics) RecordReload(err error, templates, clauses, workflows int) {
	if err != nil {
		lm.reloadsTotal.WithLabelValues("error").Inc()
		return
	}
	lm.reloadsTotal.WithLabelValues("success").Inc()
	lm.entries.WithLabelValues("template").Set(float64(templates))
	lm.entries.WithLabelValues("clause").Set(float64(clauses))
	lm.entries.WithLabelValues("workflow").Set(float64(workflows))
}

// RecordClauseSave records a clause save attempt.
func (lm *LibraryMetrics) RecordClauseSave(result string) {
	lm.clauseSavesTotal.WithLabelValues(result).Inc()
}
