// Package metrics provides Prometheus metrics for Mercator Charter.
//
// # Metrics Categories
//
//   - Operation Metrics: count and duration of every engine and analysis
//     operation by outcome
//   - Policy Metrics: generated policies, redlines, approval actions,
//     escalations, framework auto-updates and revision conflicts
//   - Mapping Metrics: control mappings by status, confidence distribution,
//     extraction rule errors and gaps by priority
//   - Library Metrics: reloads, snapshot sizes and clause saves
//   - Evidence Metrics: evidence record writes by kind and result
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	start := time.Now()
//	policy, err := eng.GeneratePolicy(ctx, ...)
//	collector.RecordOperation("generate_policy", err, time.Since(start))
//
// A nil *Collector is valid and records nothing, so components can take an
// optional collector without nil checks at every call site.
//
// # Prometheus Endpoint
//
// "charter run" serves Handler on the configured path:
//
//	# HELP mercator_charter_operations_total Total number of operations
//	# TYPE mercator_charter_operations_total counter
//	mercator_charter_operations_total{operation="generate_policy",status="success"} 12
//
// # Cardinality Management
//
// Template and framework IDs come from reference data and are bounded, but
// they pass through a CardinalityLimiter so a misconfigured catalog cannot
// grow label sets without limit. Label values beyond the limit are reported as
// "other".
package metrics
