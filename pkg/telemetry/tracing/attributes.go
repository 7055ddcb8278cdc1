package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Custom attribute keys use the "charter.*" namespace.
const (
	AttrPolicyID       = "charter.policy.id"
	AttrPolicyStatus   = "charter.policy.status"
	AttrPolicyVersion  = "charter.policy.version"
	AttrPolicyRevision = "charter.policy.revision"
	AttrTemplateID     = "charter.template.id"
	AttrOrgID          = "charter.org.id"

	AttrClauseID      = "charter.clause.id"
	AttrClauseCount   = "charter.clause.count"
	AttrDiffCount     = "charter.diff.count"
	AttrApprovalID    = "charter.approval.id"
	AttrApprovalRole  = "charter.approval.role"
	AttrApprovalAct   = "charter.approval.action"
	AttrConflictRetry = "charter.conflict.retries"

	AttrDocumentID      = "charter.document.id"
	AttrFrameworkID     = "charter.framework.id"
	AttrFrameworkCount  = "charter.framework.count"
	AttrMappingCount    = "charter.mapping.count"
	AttrGapCount        = "charter.gap.count"
	AttrConfidenceScore = "charter.confidence"

	AttrLibrarySource = "charter.library.source"
)

// SetPolicyAttributes sets the identity and state of a policy.
func SetPolicyAttributes(span trace.Span, policyID, templateID, status string, version int, revision int64) {
	span.SetAttributes(
		attribute.String(AttrPolicyID, policyID),
		attribute.String(AttrTemplateID, templateID),
		attribute.String(AttrPolicyStatus, status),
		attribute.Int(AttrPolicyVersion, version),
		attribute.Int64(AttrPolicyRevision, revision),
	)
}

// SetApprovalAttributes sets the approval being acted on.
func SetApprovalAttributes(span trace.Span, approvalID, role, action string) {
	span.SetAttributes(
		attribute.String(AttrApprovalID, approvalID),
		attribute.String(AttrApprovalRole, role),
		attribute.String(AttrApprovalAct, action),
	)
}

// SetMappingAttributes summarizes a mapping report.
func SetMappingAttributes(span trace.Span, documentID string, frameworks, mappings, gaps int, confidence float64) {
	span.SetAttributes(
		attribute.String(AttrDocumentID, documentID),
		attribute.Int(AttrFrameworkCount, frameworks),
		attribute.Int(AttrMappingCount, mappings),
		attribute.Int(AttrGapCount, gaps),
		attribute.Float64(AttrConfidenceScore, confidence),
	)
}

// AddEvent adds a named event to span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// AttributeBuilder collects span attributes for span start options.
//
//	ctx, span := tracer.Start(ctx, "policy.generate",
//		tracing.NewAttributeBuilder().WithTemplate(templateID).WithOrg(orgID).Build())
type AttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewAttributeBuilder creates an empty builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{}
}

// WithPolicy adds the policy ID.
func (ab *AttributeBuilder) WithPolicy(policyID string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrPolicyID, policyID))
	return ab
}

// WithTemplate adds the template ID.
func (ab *AttributeBuilder) WithTemplate(templateID string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrTemplateID, templateID))
	return ab
}

// WithOrg adds the organization ID.
func (ab *AttributeBuilder) WithOrg(orgID string) *AttributeBuilder {
	if orgID != "" {
		ab.attrs = append(ab.attrs, attribute.String(AttrOrgID, orgID))
	}
	return ab
}

// WithClause adds the clause ID.
func (ab *AttributeBuilder) WithClause(clauseID string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrClauseID, clauseID))
	return ab
}

// WithDocument adds the document ID.
func (ab *AttributeBuilder) WithDocument(documentID string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrDocumentID, documentID))
	return ab
}

// WithFramework adds the framework ID.
func (ab *AttributeBuilder) WithFramework(frameworkID string) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.String(AttrFrameworkID, frameworkID))
	return ab
}

// WithInt adds an integer attribute.
func (ab *AttributeBuilder) WithInt(key string, v int) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.Int(key, v))
	return ab
}

// Build returns the attributes as a span start option.
func (ab *AttributeBuilder) Build() trace.SpanStartOption {
	return trace.WithAttributes(ab.attrs...)
}

// Attributes returns the collected attributes.
func (ab *AttributeBuilder) Attributes() []attribute.KeyValue {
	return ab.attrs
}
