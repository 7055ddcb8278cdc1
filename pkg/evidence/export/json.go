package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/charter/pkg/evidence"
)

// JSONExporter exports evidence records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export implements evidence.Exporter. An empty input writes "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	if records == nil {
		records = []*evidence.Record{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return evidence.NewExportError("json", len(records), err)
	}
	return nil
}
