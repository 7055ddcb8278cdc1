package evidence

import (
	"context"
	"io"
	"time"
)

// Kind classifies the governance action a record documents.
type Kind string

const (
	KindPolicyGenerated   Kind = "policy_generated"
	KindRedlinesGenerated Kind = "redlines_generated"
	KindRedlinesApplied   Kind = "redlines_applied"
	KindWorkflowInitiated Kind = "workflow_initiated"
	KindApprovalProcessed Kind = "approval_processed"
	KindEscalation        Kind = "escalation"
	KindClauseSaved       Kind = "clause_saved"
	KindDocumentMapped    Kind = "document_mapped"
	KindFrameworkUpdate   Kind = "framework_update"
)

// Kinds returns every known kind in lifecycle order.
func Kinds() []Kind {
	return []Kind{
		KindPolicyGenerated, KindRedlinesGenerated, KindRedlinesApplied,
		KindWorkflowInitiated, KindApprovalProcessed, KindEscalation,
		KindClauseSaved, KindDocumentMapped, KindFrameworkUpdate,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPolicyGenerated, KindRedlinesGenerated, KindRedlinesApplied,
		KindWorkflowInitiated, KindApprovalProcessed, KindEscalation,
		KindClauseSaved, KindDocumentMapped, KindFrameworkUpdate:
		return true
	}
	return false
}

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Record is one entry of the audit trail.
type Record struct {
	ID   string `json:"id"` // UUID v4
	Kind Kind   `json:"kind"`

	// SubjectID is the policy, document or clause the action applied to.
	SubjectID string `json:"subject_id"`
	OrgID     string `json:"org_id,omitempty"`

	// Actor is the approver or author, empty for system actions.
	Actor string `json:"actor,omitempty"`
	Role  string `json:"role,omitempty"`

	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`

	// Summary is a short human-readable description, truncated by the
	// recorder.
	Summary string `json:"summary,omitempty"`

	// ContentHash is the SHA-256 of the resulting content (policy text,
	// redline set, mapping report).
	ContentHash string `json:"content_hash,omitempty"`

	// Revision of the subject after the action, when it has one.
	Revision int64 `json:"revision,omitempty"`

	// LibrarySource identifies the clause library snapshot in use.
	LibrarySource string `json:"library_source,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Query defines filter parameters for evidence records.
type Query struct {
	Kind      Kind   `json:"kind,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	OrgID     string `json:"org_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Outcome   string `json:"outcome,omitempty"`

	// Time range, both inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder by RecordedAt: "asc" or "desc".
	SortOrder string `json:"sort_order,omitempty"`
}

// Matches reports whether r passes the query's filters. Pagination and
// ordering are not considered.
func (q *Query) Matches(r *Record) bool {
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.SubjectID != "" && r.SubjectID != q.SubjectID {
		return false
	}
	if q.OrgID != "" && r.OrgID != q.OrgID {
		return false
	}
	if q.Actor != "" && r.Actor != q.Actor {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	if q.StartTime != nil && r.RecordedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.RecordedAt.After(*q.EndTime) {
		return false
	}
	return true
}

// Storage defines the interface for evidence storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record. Storing an existing ID is an error.
	Store(ctx context.Context, record *Record) error

	// Query returns matching records. Returns an empty slice if none match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of matching records, ignoring pagination.
	Count(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter writes records in a serialization format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}

// Recorder accepts records for the audit trail. *recorder.Recorder
// implements it asynchronously.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
}
