package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"mercator-hq/charter/pkg/evidence"
)

// CSVExporter exports evidence records as CSV, one row per record.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header lists the CSV columns.
var Header = []string{
	"id", "kind", "subject_id", "org_id", "actor", "role",
	"outcome", "error", "summary", "content_hash", "revision",
	"library_source", "attributes", "recorded_at",
}

// Export implements evidence.Exporter.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(recordToRow(r)); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordToRow(r *evidence.Record) []string {
	attributes := ""
	if len(r.Attributes) > 0 {
		data, _ := json.Marshal(r.Attributes)
		attributes = string(data)
	}
	recordedAt := ""
	if !r.RecordedAt.IsZero() {
		recordedAt = r.RecordedAt.UTC().Format(time.RFC3339)
	}

	return []string{
		r.ID,
		string(r.Kind),
		r.SubjectID,
		r.OrgID,
		r.Actor,
		r.Role,
		r.Outcome,
		r.Error,
		r.Summary,
		r.ContentHash,
		strconv.FormatInt(r.Revision, 10),
		r.LibrarySource,
		attributes,
		recordedAt,
	}
}
