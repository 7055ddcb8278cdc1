package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	policyIDKey   contextKey = "policy_id"
	documentIDKey contextKey = "document_id"
	actorKey      contextKey = "actor"
)

// WithPolicyID adds a policy ID to ctx for log records.
func WithPolicyID(ctx context.Context, policyID string) context.Context {
	return context.WithValue(ctx, policyIDKey, policyID)
}

// WithDocumentID adds a document ID to ctx for log records.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, documentIDKey, documentID)
}

// WithActor adds the acting user (approver or editor) to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ContextHandler adds the context fields above and the active trace ID to
// every record logged with a *Context method.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if ctx != nil {
		for _, key := range []contextKey{policyIDKey, documentIDKey, actorKey} {
			if v, ok := ctx.Value(key).(string); ok && v != "" {
				rec.AddAttrs(slog.String(string(key), v))
			}
		}
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			rec.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
		}
	}
	return h.next.Handle(ctx, rec)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
