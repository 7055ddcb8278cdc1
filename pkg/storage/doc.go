// Package storage defines the repositories that persist policies, approvals
// and edited clauses, together with an in-memory implementation.
//
// # Concurrency Contract
//
// Every persisted entity carries a Revision. Writers pass the revision they
// read; a write whose base revision differs from the stored one fails with
// ErrRevisionConflict and changes nothing. On success the stored revision
// (and the Revision field of the value passed in) is incremented by one.
//
// A policy's DiffHistory and ApprovalTrail, and an approval's Comments, are
// append-only. A write whose history is not an extension of the stored
// history fails with ErrAppendOnlyViolation.
//
// # Atomic Policy Updates
//
// UpdatePolicy saves a policy together with any approvals that changed with
// it. Starting a workflow and recording a decision both touch the policy and
// its approvals; either all of them are written or none are.
//
// # Backends
//
//   - Memory: maps guarded by a mutex, for tests and one-shot CLI runs
//   - SQLite: see package storage/sqlite
package storage
