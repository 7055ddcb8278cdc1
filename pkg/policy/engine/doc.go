// Package engine is the entry point for policy operations: generation from
// the clause library, redlining, the approval workflow, clause edits and
// framework-driven updates.
//
// The Engine reads the current library snapshot from a library.Holder on
// every call and persists through a storage.Store. Every error it returns is
// a *governance.Error carrying the standing disclaimer; callers branch on
// governance.KindOf.
//
// Writes use the revision carried by the entity as the base revision. A
// ProcessApproval that loses a race reloads and re-validates, so two
// approvers acting at once never overwrite each other.
package engine
