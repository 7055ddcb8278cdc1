// Package recorder writes evidence records asynchronously.
//
// Record fills the record's ID and timestamp, truncates free-text fields and
// enqueues it; a background worker drains the queue into an
// evidence.Storage. Governance operations therefore never wait on the audit
// store. Close drains the queue before returning, so a CLI run that closes
// its recorder loses nothing.
//
// When the queue stays full for longer than the write timeout the record is
// dropped and Record returns a *evidence.RecorderError wrapping
// context.DeadlineExceeded.
package recorder
