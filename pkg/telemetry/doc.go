// Package telemetry groups the observability packages of Charter.
//
//   - logging: slog construction with PII redaction and context fields
//   - metrics: Prometheus collectors for generation, approval, mapping and
//     library activity
//   - tracing: OpenTelemetry spans over the governance operations
//   - health: liveness and readiness probes for "charter run"
package telemetry
