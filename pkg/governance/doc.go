// Package governance holds the pieces shared by the policy engine and the
// framework mapper: the standing legal disclaimer and the error taxonomy that
// every caller-facing error is converted into.
//
// # Error Kinds
//
//   - KindConfiguration: unknown template, missing approval workflow, cyclic
//     clause dependencies. Fatal to the single request.
//   - KindValidation: bad input (empty clause body, unknown action, action on a
//     rejected policy). State is left unchanged.
//   - KindConflict: optimistic concurrency failure on a clause, approval or policy.
//   - KindNotFound: unknown policy, approval or clause.
//   - KindEvaluation: a single extraction rule failed; never returned by the
//     service layer, only recorded.
//   - KindBatch: a framework auto-update failed for one policy.
//
// Errors are wrapped with Wrap at the engine boundary:
//
//	if err != nil {
//	    return nil, governance.Wrap(governance.KindValidation, "process approval", err)
//	}
//
// The returned *Error always ends with Disclaimer and unwraps to the cause, so
// errors.Is and errors.As keep working for callers.
package governance
