// Package approval drives policies through review.
//
// A policy moves draft -> review when a workflow is initiated, stays in
// review while approvers request changes, and ends approved once every
// required role has approved or rejected after a single rejection. Applying
// redlines that touch approval-gated sections returns the policy to draft.
//
// Workflow is pure with respect to storage: it mutates the policy and
// approvals it is handed, and the caller persists them. Scheduler runs the
// escalation sweep on a cron schedule.
package approval
