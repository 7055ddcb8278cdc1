// Package gitsource keeps a local clone of a git-hosted clause library.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/charter/pkg/config"
)

// Commit identifies the library revision a snapshot was loaded from.
type Commit struct {
	SHA     string
	Author  string
	Message string
	Branch  string
}

// SyncResult reports what a Sync changed.
type SyncResult struct {
	FromSHA      string
	ToSHA        string
	Changed      bool
	ChangedFiles []string
}

// Repository manages the local clone.
type Repository struct {
	cfg       config.GitSourceConfig
	localPath string
	auth      AuthProvider
	logger    *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewRepository validates cfg and prepares a Repository. Nothing is cloned
// until Sync is called.
func NewRepository(cfg config.GitSourceConfig, logger *slog.Logger) (*Repository, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	auth, err := NewAuthProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	localPath := cfg.Clone.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "charter-library")
	}

	return &Repository{
		cfg:       cfg,
		localPath: localPath,
		auth:      auth,
		logger:    logger.With("component", "library.git", "repository", cfg.Repository),
	}, nil
}

// LibraryPath is the directory inside the clone that holds library files.
func (r *Repository) LibraryPath() string {
	return filepath.Join(r.localPath, r.cfg.Path)
}

// Sync clones the repository on first use and pulls on later calls.
func (r *Repository) Sync(ctx context.Context) (*SyncResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		if err := r.open(ctx); err != nil {
			return nil, err
		}
		sha, err := r.headSHA()
		if err != nil {
			return nil, err
		}
		r.logger.Info("library repository ready", "commit", sha, "path", r.localPath)
		return &SyncResult{ToSHA: sha, Changed: true}, nil
	}

	return r.pull(ctx)
}

// Head returns the commit currently checked out.
func (r *Repository) Head() (*Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Sync first")
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return &Commit{
		SHA:     commit.Hash.String(),
		Author:  commit.Author.Name,
		Message: commit.Message,
		Branch:  r.cfg.Branch,
	}, nil
}

func (r *Repository) open(ctx context.Context) error {
	if r.cfg.Clone.CleanOnStart {
		if err := os.RemoveAll(r.localPath); err != nil {
			return fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		return nil
	}

	if err := os.MkdirAll(r.localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	auth, err := r.auth.Auth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.localPath, false, &gogit.CloneOptions{
		URL:           r.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Depth:         r.cfg.Clone.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	r.repo = repo
	return nil
}

func (r *Repository) pull(ctx context.Context) (*SyncResult, error) {
	from, err := r.headSHA()
	if err != nil {
		return nil, err
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := r.auth.Auth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	to, err := r.headSHA()
	if err != nil {
		return nil, err
	}

	res := &SyncResult{FromSHA: from, ToSHA: to, Changed: from != to}
	if res.Changed {
		if res.ChangedFiles, err = r.changedFiles(from, to); err != nil {
			return nil, err
		}
		r.logger.Info("library repository updated", "from", from, "to", to, "files", len(res.ChangedFiles))
	}
	return res, nil
}

func (r *Repository) headSHA() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	var files []string
	for _, c := range changes {
		if c.To.Name != "" {
			files = append(files, c.To.Name)
		} else if c.From.Name != "" {
			files = append(files, c.From.Name)
		}
	}
	return files, nil
}
