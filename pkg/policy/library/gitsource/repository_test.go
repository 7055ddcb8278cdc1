package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/charter/pkg/config"
	"mercator-hq/charter/pkg/policy/library"
)

const libraryV1 = `
clauses:
  - id: purpose
    title: Purpose
    body: This policy governs AI use.
`

const libraryV2 = libraryV1 + `
  - id: privacy
    title: Student Privacy
    body: Student data is protected.
`

// commitFile writes name into the worktree of repo at dir and commits it.
func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	_, err = wt.Commit("update "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Policy Team", Email: "policy@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func testConfig(source, local string) config.GitSourceConfig {
	return config.GitSourceConfig{
		Enabled:    true,
		Repository: source,
		Branch:     "master", // go-git init creates master
		Path:       "library",
		Auth:       config.GitAuthConfig{Type: "none"},
		Clone:      config.GitCloneConfig{LocalPath: local},
		Timeout:    10 * time.Second,
	}
}

func TestNewRepository(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GitSourceConfig
		wantErr bool
	}{
		{"missing repository", config.GitSourceConfig{Branch: "main"}, true},
		{"missing branch", config.GitSourceConfig{Repository: "https://example.com/lib.git"}, true},
		{"unknown auth", config.GitSourceConfig{Repository: "https://example.com/lib.git", Branch: "main", Auth: config.GitAuthConfig{Type: "kerberos"}}, true},
		{"token without token", config.GitSourceConfig{Repository: "https://example.com/lib.git", Branch: "main", Auth: config.GitAuthConfig{Type: "token"}}, true},
		{"valid", config.GitSourceConfig{Repository: "https://example.com/lib.git", Branch: "main"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRepository(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRepository_Sync(t *testing.T) {
	sourceDir := t.TempDir()
	source, err := gogit.PlainInit(sourceDir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitFile(t, source, sourceDir, "library/clauses.yaml", libraryV1)

	repo, err := NewRepository(testConfig(sourceDir, filepath.Join(t.TempDir(), "clone")), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := repo.Sync(ctx)
	if err != nil {
		t.Fatalf("first Sync() error: %v", err)
	}
	if !first.Changed || first.ToSHA == "" {
		t.Errorf("first Sync() = %+v", first)
	}

	lib, err := library.Load(repo.LibraryPath())
	if err != nil {
		t.Fatalf("Load() from clone: %v", err)
	}
	if lib.Stats().Clauses != 1 {
		t.Errorf("clauses = %d, want 1", lib.Stats().Clauses)
	}

	unchanged, err := repo.Sync(ctx)
	if err != nil {
		t.Fatalf("no-op Sync() error: %v", err)
	}
	if unchanged.Changed {
		t.Error("Sync() without upstream commits reported a change")
	}

	commitFile(t, source, sourceDir, "library/clauses.yaml", libraryV2)

	updated, err := repo.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() after commit: %v", err)
	}
	if !updated.Changed || len(updated.ChangedFiles) != 1 || updated.ChangedFiles[0] != "library/clauses.yaml" {
		t.Errorf("Sync() after commit = %+v", updated)
	}

	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	if head.SHA != updated.ToSHA || head.Author != "Policy Team" {
		t.Errorf("Head() = %+v", head)
	}
}

func TestNewAuthProvider(t *testing.T) {
	tests := []struct {
		cfg      config.GitAuthConfig
		wantType string
	}{
		{config.GitAuthConfig{Type: "token", Token: "ghp_x"}, "token"},
		{config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/nonexistent"}, "ssh"},
		{config.GitAuthConfig{}, "none"},
	}
	for _, tt := range tests {
		p, err := NewAuthProvider(tt.cfg)
		if err != nil {
			t.Fatalf("NewAuthProvider(%+v) error: %v", tt.cfg, err)
		}
		if p.Type() != tt.wantType {
			t.Errorf("Type() = %q, want %q", p.Type(), tt.wantType)
		}
	}

	ssh, _ := NewAuthProvider(config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/nonexistent"})
	if _, err := ssh.Auth(); err == nil {
		t.Error("SSH auth with a missing key file should fail")
	}
}
