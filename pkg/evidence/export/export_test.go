package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"mercator-hq/charter/pkg/evidence"
)

var records = []*evidence.Record{
	{
		ID:          "r1",
		Kind:        evidence.KindApprovalProcessed,
		SubjectID:   "p1",
		Actor:       "Dana Ruiz",
		Role:        "superintendent",
		Outcome:     evidence.OutcomeSuccess,
		Summary:     "approve, with comment \"looks good\"",
		ContentHash: "abc",
		Revision:    3,
		Attributes:  map[string]string{"action": "approve"},
		RecordedAt:  time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	},
	{ID: "r2", Kind: evidence.KindDocumentMapped, SubjectID: "doc-1", Outcome: evidence.OutcomeSuccess},
}

func TestJSONExporter(t *testing.T) {
	tests := []struct {
		name    string
		records []*evidence.Record
		pretty  bool
		want    int
	}{
		{"empty", nil, false, 0},
		{"compact", records, false, 2},
		{"pretty", records, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewJSONExporter(tt.pretty).Export(context.Background(), tt.records, &buf); err != nil {
				t.Fatalf("Export() error: %v", err)
			}

			var decoded []evidence.Record
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
			}
			if len(decoded) != tt.want {
				t.Errorf("decoded %d records, want %d", len(decoded), tt.want)
			}
			if tt.pretty && !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
				t.Error("pretty output is not indented")
			}
		})
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), records, &buf); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	for i, row := range rows {
		if len(row) != len(Header) {
			t.Errorf("row %d has %d columns, want %d", i, len(row), len(Header))
		}
	}

	first := rows[1]
	if first[0] != "r1" || first[8] != `approve, with comment "looks good"` || first[10] != "3" {
		t.Errorf("first row = %v", first)
	}
	if first[12] != `{"action":"approve"}` || first[13] != "2026-05-04T12:00:00Z" {
		t.Errorf("attributes/time = %q, %q", first[12], first[13])
	}
	if rows[2][13] != "" {
		t.Errorf("zero time rendered as %q", rows[2][13])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), records[:1], &buf); err != nil {
		t.Fatal(err)
	}
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 1 || rows[0][0] != "r1" {
		t.Errorf("rows = %v", rows)
	}
}
