// Package storage provides storage backends for evidence records.
//
//   - SQLite: durable store on the pure-Go modernc.org/sqlite driver, so the
//     audit trail works in builds without cgo
//   - Memory: in-memory store for tests and one-shot CLI runs
//
// Both backends order results by recorded time (then ID) and apply the
// query's offset and limit after filtering.
package storage
