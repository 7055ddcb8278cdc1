package metrics

import (
	"time"

	"mercator-hq/charter/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics tracks engine and analysis operations.
//
// Metrics:
//   - operations_total{operation,status}
//   - operation_duration_seconds{operation}
type OperationMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewOperationMetrics creates and registers operation metrics.
func NewOperationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *OperationMetrics {
	om := &OperationMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operations_total",
				Help:      "Total number of operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				// 100µs to ~3s; repository writes dominate the tail
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(om.operationsTotal, om.operationDuration)
	return om
}

// Record records one operation.
func (om *OperationMetrics) Record(operation, status string, duration time.Duration) {
	om.operationsTotal.WithLabelValues(operation, status).Inc()
	om.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
