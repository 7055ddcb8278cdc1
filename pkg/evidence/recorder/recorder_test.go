package recorder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/storage"
)

type failingStorage struct {
	*storage.MemoryStorage
}

func (failingStorage) Store(context.Context, *evidence.Record) error {
	return errors.New("disk full")
}

func TestRecorder_RecordAndClose(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := NewRecorder(store, &Config{Enabled: true, AsyncBuffer: 4, WriteTimeout: time.Second, MaxFieldLength: 20}, nil)

	var mu sync.Mutex
	written := map[evidence.Kind]int{}
	r.OnWrite = func(kind evidence.Kind, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			written[kind]++
		}
	}

	ctx := context.Background()
	attrs := map[string]string{"template_id": "ai-use"}
	for i := 0; i < 10; i++ {
		err := r.Record(ctx, &evidence.Record{
			Kind:       evidence.KindPolicyGenerated,
			SubjectID:  "p1",
			Summary:    "generated policy from template ai-use for district-7",
			Attributes: attrs,
		})
		if err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	attrs["template_id"] = "mutated"

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	records, err := store.Query(ctx, &evidence.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 10 {
		t.Fatalf("stored %d records, want 10", len(records))
	}
	rec := records[0]
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("ID %q is not a UUID", rec.ID)
	}
	if rec.RecordedAt.IsZero() || rec.Outcome != evidence.OutcomeSuccess {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Summary) > 20 || !strings.HasSuffix(rec.Summary, "...") {
		t.Errorf("Summary = %q, want truncated to 20 bytes", rec.Summary)
	}
	if rec.Attributes["template_id"] != "ai-use" {
		t.Error("recorder kept a reference to the caller's attributes")
	}
	if written[evidence.KindPolicyGenerated] != 10 {
		t.Errorf("OnWrite saw %d writes", written[evidence.KindPolicyGenerated])
	}
}

func TestRecorder_ErrorOutcome(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := NewRecorder(store, DefaultConfig(), nil)

	_ = r.Record(context.Background(), &evidence.Record{Kind: evidence.KindApprovalProcessed, SubjectID: "p1", Error: "comment required"})
	r.Close()

	n, _ := store.Count(context.Background(), &evidence.Query{Outcome: evidence.OutcomeError})
	if n != 1 {
		t.Errorf("error records = %d, want 1", n)
	}
}

func TestRecorder_Disabled(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := NewRecorder(store, &Config{Enabled: false}, nil)

	if err := r.Record(context.Background(), &evidence.Record{Kind: evidence.KindClauseSaved}); err != nil {
		t.Fatal(err)
	}
	r.Close()

	if n, _ := store.Count(context.Background(), &evidence.Query{}); n != 0 {
		t.Errorf("disabled recorder stored %d records", n)
	}
}

func TestRecorder_AfterClose(t *testing.T) {
	r := NewRecorder(storage.NewMemoryStorage(), DefaultConfig(), nil)
	r.Close()

	err := r.Record(context.Background(), &evidence.Record{Kind: evidence.KindClauseSaved})
	var re *evidence.RecorderError
	if !errors.As(err, &re) || !errors.Is(err, context.Canceled) {
		t.Errorf("Record() after Close() error = %v", err)
	}
}

func TestRecorder_StorageFailure(t *testing.T) {
	r := NewRecorder(failingStorage{storage.NewMemoryStorage()}, DefaultConfig(), nil)

	failures := make(chan error, 1)
	r.OnWrite = func(_ evidence.Kind, err error) { failures <- err }

	if err := r.Record(context.Background(), &evidence.Record{Kind: evidence.KindEscalation}); err != nil {
		t.Fatalf("Record() should not surface storage errors, got %v", err)
	}
	r.Close()

	select {
	case err := <-failures:
		if err == nil {
			t.Error("OnWrite reported success for a failing store")
		}
	default:
		t.Error("OnWrite not called")
	}
}

func TestHashContent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		if got := HashString(tt.in); got != tt.want {
			t.Errorf("HashString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	a := HashJSON(map[string]int{"b": 2, "a": 1})
	b := HashJSON(map[string]int{"a": 1, "b": 2})
	if a == "" || a != b {
		t.Errorf("HashJSON() not stable across map order: %s vs %s", a, b)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 6, "hé..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
