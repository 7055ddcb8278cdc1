package metrics

import (
	"strconv"

	"mercator-hq/charter/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks the policy lifecycle.
//
// Metrics:
//   - policies_generated_total{template}
//   - policy_clauses_selected: clauses per generated policy
//   - redlines_total{change_type,approval_required}
//   - approvals_processed_total{action}
//   - escalations_total{role}
//   - framework_updates_total{framework,outcome}
//   - revision_conflicts_total{entity}
type PolicyMetrics struct {
	generatedTotal        *prometheus.CounterVec
	clausesSelected       prometheus.Histogram
	redlinesTotal         *prometheus.CounterVec
	approvalsTotal        *prometheus.CounterVec
	escalationsTotal      *prometheus.CounterVec
	frameworkUpdatesTotal *prometheus.CounterVec
	conflictsTotal        *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      name,
				Help:      help,
			},
			labels,
		)
	}

	pm := &PolicyMetrics{
		generatedTotal: counter("policies_generated_total", "Total number of generated policies", "template"),
		clausesSelected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "policy_clauses_selected",
			Help:      "Number of clauses selected per generated policy",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}),
		redlinesTotal:         counter("redlines_total", "Total number of section diffs", "change_type", "approval_required"),
		approvalsTotal:        counter("approvals_processed_total", "Total number of processed approval actions", "action"),
		escalationsTotal:      counter("escalations_total", "Total number of escalation notifications", "role"),
		frameworkUpdatesTotal: counter("framework_updates_total", "Framework auto-update outcomes per policy", "framework", "outcome"),
		conflictsTotal:        counter("revision_conflicts_total", "Total number of optimistic concurrency conflicts", "entity"),
	}

	registry.MustRegister(
		pm.generatedTotal,
		pm.clausesSelected,
		pm.redlinesTotal,
		pm.approvalsTotal,
		pm.escalationsTotal,
		pm.frameworkUpdatesTotal,
		pm.conflictsTotal,
	)
	return pm
}

// RecordGenerated records a generated policy.
func (pm *PolicyMetrics) RecordGenerated(templateID string, clauses int) {
	pm.generatedTotal.WithLabelValues(templateID).Inc()
	pm.clausesSelected.Observe(float64(clauses))
}

// RecordRedline records one diff.
func (pm *PolicyMetrics) RecordRedline(changeType string, approvalRequired bool) {
	pm.redlinesTotal.WithLabelValues(changeType, strconv.FormatBool(approvalRequired)).Inc()
}

// RecordApproval records one approval action.
func (pm *PolicyMetrics) RecordApproval(action string) {
	pm.approvalsTotal.WithLabelValues(action).Inc()
}

// RecordEscalation records one escalation notification.
func (pm *PolicyMetrics) RecordEscalation(role string) {
	pm.escalationsTotal.WithLabelValues(role).Inc()
}

// RecordFrameworkUpdate records one per-policy auto-update outcome.
func (pm *PolicyMetrics) RecordFrameworkUpdate(frameworkID, outcome string) {
	pm.frameworkUpdatesTotal.WithLabelValues(frameworkID, outcome).Inc()
}

// RecordConflict records one revision conflict.
func (pm *PolicyMetrics) RecordConflict(entity string) {
	pm.conflictsTotal.WithLabelValues(entity).Inc()
}
