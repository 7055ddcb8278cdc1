package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceParentKey is the W3C trace context key stored in carriers.
const TraceParentKey = "traceparent"

// Propagator returns the global text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// InjectToMap writes the trace context of ctx into carrier. Evidence records
// carry it in their attributes so an audit entry can be joined to its trace.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	Propagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// ExtractFromMap returns ctx with the trace context found in carrier.
func ExtractFromMap(ctx context.Context, carrier map[string]string) context.Context {
	return Propagator().Extract(ctx, propagation.MapCarrier(carrier))
}

// ValidateTraceParent checks the W3C traceparent format
// version-trace_id-parent_id-flags with non-zero IDs.
//
// Example: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
func ValidateTraceParent(traceparent string) bool {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return false
	}
	for i, n := range []int{2, 32, 16, 2} {
		if len(parts[i]) != n || !isHexString(parts[i]) {
			return false
		}
	}
	return parts[1] != strings.Repeat("0", 32) && parts[2] != strings.Repeat("0", 16)
}

// TraceIDFromTraceParent returns the trace ID of a valid traceparent.
func TraceIDFromTraceParent(traceparent string) (string, bool) {
	if !ValidateTraceParent(traceparent) {
		return "", false
	}
	return strings.Split(traceparent, "-")[1], true
}

func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
