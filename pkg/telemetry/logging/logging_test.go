package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/charter/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{name: "defaults", cfg: config.LoggingConfig{}},
		{name: "text debug", cfg: config.LoggingConfig{Level: "debug", Format: "text"}},
		{name: "console warn", cfg: config.LoggingConfig{Level: "warning", Format: "console"}},
		{name: "bad level", cfg: config.LoggingConfig{Level: "verbose"}, wantErr: true},
		{name: "bad format", cfg: config.LoggingConfig{Format: "xml"}, wantErr: true},
		{
			name: "bad redact pattern",
			cfg: config.LoggingConfig{
				RedactPII:      true,
				RedactPatterns: []config.RedactPattern{{Name: "broken", Pattern: "("}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn not written: %s", buf.String())
	}
}

func TestRedactingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{
		RedactPII: true,
		RedactPatterns: []config.RedactPattern{
			{Name: "student_id", Pattern: `STU-\d{6}`, Replacement: "STU-******"},
		},
	}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("contact jane.doe@district.org about STU-123456",
		"phone", "call 555-867-5309 today",
		"ssn_note", "ssn 123-45-6789",
		"signature", "approved-by-superintendent",
		"err", errors.New("send to bob@example.com failed"),
		slog.Group("doc", "body", "mail ann@school.edu"),
	)

	entry := decodeLine(t, &buf)
	checks := map[string]string{
		"msg":   "contact [email] about STU-******",
		"phone": "call ***-***-**** today",
		"err":   "send to [email] failed",
	}
	for key, want := range checks {
		if got := entry[key]; got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if got := entry["signature"]; got != "appr***" {
		t.Errorf("signature = %q, want masked", got)
	}
	if got := entry["ssn_note"]; got != "ssn ***" {
		t.Errorf("ssn_note = %q, want sensitive-key mask", got)
	}
	doc, ok := entry["doc"].(map[string]any)
	if !ok || doc["body"] != "mail [email]" {
		t.Errorf("group not redacted: %v", entry["doc"])
	}
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{RedactPII: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.With("owner", "owner@district.org").Info("saved")

	entry := decodeLine(t, &buf)
	if got := entry["owner"]; got != "[email]" {
		t.Errorf("owner = %q, want [email]", got)
	}
}

func TestRedactionDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{RedactPII: false}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("x", "owner", "owner@district.org")
	if got := decodeLine(t, &buf)["owner"]; got != "owner@district.org" {
		t.Errorf("owner = %q, want unredacted", got)
	}
}

func TestRedactString(t *testing.T) {
	r, err := NewRedactor(nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"no pii here", "no pii here"},
		{"", ""},
		{"ssn 123-45-6789", "ssn ***-**-****"},
		{"card 4111 1111 1111 1111", "card ****-****-****-****"},
		{"call (555) 867-5309", "call ***-***-****"},
		{"Authorization: Bearer abc.def-123", "Authorization: Bearer ***"},
		{"password=hunter2 next", "password: *** next"},
	}
	for _, tt := range tests {
		if got := r.RedactString(tt.in); got != tt.want {
			t.Errorf("RedactString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithPolicyID(ctx, "pol-1")
	ctx = WithDocumentID(ctx, "doc-9")
	ctx = WithActor(ctx, "principal")

	logger.InfoContext(ctx, "approved")
	entry := decodeLine(t, &buf)

	want := map[string]string{
		"policy_id":   "pol-1",
		"document_id": "doc-9",
		"actor":       "principal",
		"trace_id":    traceID.String(),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %s", k, entry[k], v)
		}
	}

	buf.Reset()
	logger.Info("plain")
	if _, ok := decodeLine(t, &buf)["policy_id"]; ok {
		t.Error("policy_id present without context")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	Component(logger, "engine").Info("x")
	if got := decodeLine(t, &buf)["component"]; got != "engine" {
		t.Errorf("component = %v", got)
	}
	if Component(nil, "x") == nil {
		t.Error("Component(nil) returned nil")
	}
}

func TestMaskValue(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"short":      "***",
		"longsecret": "long***",
	}
	for in, want := range tests {
		if got := MaskValue(in); got != want {
			t.Errorf("MaskValue(%q) = %q, want %q", in, got, want)
		}
	}
}
