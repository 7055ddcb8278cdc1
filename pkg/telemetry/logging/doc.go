// Package logging builds the process *slog.Logger.
//
// Components take a *slog.Logger and never construct their own. New layers
// two handlers over the JSON or text handler:
//
//   - ContextHandler adds policy_id, document_id, actor and the active
//     OpenTelemetry trace_id to records logged with the *Context methods.
//   - RedactingHandler masks emails, SSNs, phone numbers, card numbers and
//     credentials in messages and string attributes when redact_pii is set.
//
// Usage:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, nil)
//	ctx = logging.WithPolicyID(ctx, p.ID)
//	logger.InfoContext(ctx, "policy generated", "clauses", len(p.Clauses))
package logging
