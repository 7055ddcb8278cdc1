// Package policy defines the data model of the policy engine: templates and
// clauses from the clause library, the organization profile clauses are
// selected against, and the mutable Policy document with its append-only diff
// history and approval trail.
//
// The algorithms live in subpackages:
//
//   - selector: evaluates clause selection rules and orders clauses by dependency
//   - assembler: interpolates a template and its selected clauses into content
//   - redline: section-level diffing and replay
//   - approval: the multi-role sign-off state machine and escalation
//   - library: the immutable clause library snapshot and its YAML loader
//   - engine: the operations exposed to callers
package policy
