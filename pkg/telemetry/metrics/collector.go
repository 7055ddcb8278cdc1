package metrics

import (
	"sync"
	"time"

	"mercator-hq/charter/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// maxLabelValues caps the distinct template and framework label values.
const maxLabelValues = 1000

// Collector owns every Charter metric.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	operationMetrics *OperationMetrics
	policyMetrics    *PolicyMetrics
	mappingMetrics   *MappingMetrics
	libraryMetrics   *LibraryMetrics
	evidenceMetrics  *EvidenceMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering its metrics on registry. If
// registry is nil a new one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "mercator"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "charter"
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		operationMetrics:   NewOperationMetrics(cfg, registry),
		policyMetrics:      NewPolicyMetrics(cfg, registry),
		mappingMetrics:     NewMappingMetrics(cfg, registry),
		libraryMetrics:     NewLibraryMetrics(cfg, registry),
		evidenceMetrics:    NewEvidenceMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(maxLabelValues),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

func (c *Collector) label(kind, value string) string {
	if !c.cardinalityLimiter.Allow(kind + ":" + value) {
		return "other"
	}
	return value
}

// RecordOperation records a completed engine or analysis operation.
// status is "error" when err is non-nil.
func (c *Collector) RecordOperation(operation string, err error, duration time.Duration) {
	if !c.enabled() {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.operationMetrics.Record(operation, status, duration)
}

// RecordPolicyGenerated counts a generated policy.
func (c *Collector) RecordPolicyGenerated(templateID string, clauses int) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordGenerated(c.label("template", templateID), clauses)
}

// RecordRedline counts one diff by change type.
func (c *Collector) RecordRedline(changeType string, approvalRequired bool) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordRedline(changeType, approvalRequired)
}

// RecordApproval counts a processed approval action.
func (c *Collector) RecordApproval(action string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordApproval(action)
}

// RecordEscalation counts an escalation notification.
func (c *Collector) RecordEscalation(role string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordEscalation(role)
}

// RecordFrameworkUpdate counts the outcome of an auto-update for one policy.
// outcome is "updated", "skipped" or "failed".
func (c *Collector) RecordFrameworkUpdate(frameworkID, outcome string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordFrameworkUpdate(c.label("framework", frameworkID), outcome)
}

// RecordConflict counts an optimistic concurrency failure.
func (c *Collector) RecordConflict(entity string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordConflict(entity)
}

// RecordMapping records one scored control.
func (c *Collector) RecordMapping(frameworkID, status string, confidence float64, retained bool) {
	if !c.enabled() {
		return
	}
	c.mappingMetrics.RecordMapping(c.label("framework", frameworkID), status, confidence, retained)
}

// RecordRuleError counts an extraction rule that could not be evaluated.
func (c *Collector) RecordRuleError(frameworkID string) {
	if !c.enabled() {
		return
	}
	c.mappingMetrics.RecordRuleError(c.label("framework", frameworkID))
}

// RecordGap counts a gap by priority.
func (c *Collector) RecordGap(frameworkID, priority string) {
	if !c.enabled() {
		return
	}
	c.mappingMetrics.RecordGap(c.label("framework", frameworkID), priority)
}

// RecordLibraryReload records a library reload and, on success, the size of
// the new snapshot.
func (c *Collector) RecordLibraryReload(err error, templates, clauses, workflows int) {
	if !c.enabled() {
		return
	}
	c.libraryMetrics.RecordReload(err, templates, clauses, workflows)
}

// RecordClauseSave records a clause save by result ("saved", "conflict",
// "invalid" or "error").
func (c *Collector) RecordClauseSave(result string) {
	if !c.enabled() {
		return
	}
	c.libraryMetrics.RecordClauseSave(result)
}

// RecordEvidenceWrite records an evidence write.
func (c *Collector) RecordEvidenceWrite(kind string, err error) {
	if !c.enabled() {
		return
	}
	c.evidenceMetrics.RecordWrite(kind, err)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit. A fitting value is remembered.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
