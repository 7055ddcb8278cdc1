// Package tracing provides OpenTelemetry tracing for Mercator Charter.
//
// Spans are exported over OTLP gRPC. The policy engine and the analysis
// service open one span per operation:
//
//	ctx, span := tracer.Start(ctx, "policy.generate",
//		tracing.NewAttributeBuilder().WithTemplate(templateID).Build())
//	defer func() { tracing.End(span, err) }()
//
// # Sampling Strategies
//
//   - always: sample all traces
//   - never: sample no traces
//   - ratio: sample a fraction of traces by trace ID (default)
//
// Samplers are parent-based, so child spans follow their root's decision.
//
// # Trace Context in Evidence
//
// There is no inbound transport to carry trace headers. Instead the W3C
// traceparent of the operation is written into each evidence record's
// attributes with InjectToMap, so an audit entry can be joined to its trace.
//
// A nil *Tracer is valid and produces noop spans.
package tracing
