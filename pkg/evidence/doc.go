// Package evidence defines the audit trail kept for governance actions.
//
// Every state-changing operation of the policy engine and every mapping
// report of the analysis service produces one Record: who acted, on what,
// with which outcome, and a SHA-256 hash of the content that resulted. The
// hash lets an auditor later prove that a stored policy text is the one that
// was generated, approved or redlined at a given time, without the evidence
// store having to keep full document copies.
//
// # Package Layout
//
//   - evidence: record and query types, the Storage and Exporter interfaces
//   - evidence/recorder: asynchronous recorder that fills IDs, timestamps
//     and truncation before handing records to storage
//   - evidence/storage: in-memory and SQLite backends
//   - evidence/query: query validation and defaults
//   - evidence/export: JSON and CSV exporters used by "charter evidence query"
//
// # Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: "data/evidence.db"})
//	if err != nil {
//	    return err
//	}
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//
//	_ = rec.Record(ctx, &evidence.Record{
//	    Kind:        evidence.KindPolicyGenerated,
//	    SubjectID:   pol.ID,
//	    ContentHash: recorder.HashString(pol.Content),
//	})
//
// Records are immutable once stored; the backends offer no update path.
package evidence
