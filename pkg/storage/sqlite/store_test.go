package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/charter/pkg/config"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/storage"
	"mercator-hq/charter/pkg/storage/storagetest"
)

func testConfig(t *testing.T) config.SQLiteConfig {
	t.Helper()
	return config.SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "charter.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(testConfig(t), nil)
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		return s
	})
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(config.SQLiteConfig{}, nil); err == nil {
		t.Error("Open() without a path should fail")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	s, err := Open(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := &policy.Policy{ID: "p1", OrgID: "district-7", TemplateID: "ai-use", Status: policy.StatusDraft, Content: "# Policy\n"}
	if err := s.CreatePolicy(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	reopened, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetPolicy(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != p.Content || got.Revision != 1 {
		t.Errorf("GetPolicy() after reopen = %+v", got)
	}
}
