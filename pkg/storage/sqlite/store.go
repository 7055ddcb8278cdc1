// Package sqlite implements storage.Store on SQLite using the
// github.com/mattn/go-sqlite3 driver.
//
// Policies, approvals and clauses are stored as JSON documents. Revision
// checks and the append-only history checks run inside a single immediate
// transaction, so concurrent writers from several processes sharing the
// database file see the same conflict semantics as the in-memory store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/charter/pkg/config"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/storage"
)

const backend = "sqlite"

// Store implements storage.Store.
type Store struct {
	db     *sql.DB
	cfg    config.SQLiteConfig
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database at cfg.Path and initializes
// the schema.
func Open(cfg config.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, storage.NewError(backend, "open", errors.New("database path is required"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storage.NewError(backend, "open", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storage.NewError(backend, "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "storage.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite store initialized", "path", cfg.Path, "wal_mode", cfg.WALMode)
	return s, nil
}

func (s *Store) initialize() error {
	if s.cfg.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return storage.NewError(backend, "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return storage.NewError(backend, "create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return storage.NewError(backend, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return storage.NewError(backend, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return storage.NewError(backend, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreatePolicy implements storage.PolicyRepository.
func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	stored := p.Clone()
	stored.Revision = 1
	data, err := json.Marshal(stored)
	if err != nil {
		return storage.NewError(backend, "create_policy", err)
	}

	return s.withTx(ctx, "create_policy", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM policies WHERE id = ?`, p.ID).Scan(&exists)
		switch {
		case err == nil:
			return fmt.Errorf("policy %s: %w", p.ID, storage.ErrAlreadyExists)
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO policies (id, org_id, template_id, status, auto_update, revision, data, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.ID, stored.OrgID, stored.TemplateID, string(stored.Status), stored.AutoUpdate,
			stored.Revision, string(data), stored.UpdatedAt.UTC())
		if err != nil {
			return err
		}
		p.Revision = 1
		return nil
	})
}

// GetPolicy implements storage.PolicyRepository.
func (s *Store) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	p, err := getPolicy(ctx, s.db, id)
	if err != nil {
		return nil, wrap("get_policy", err)
	}
	return p, nil
}

// ListPolicies implements storage.PolicyRepository. Org, status and
// auto-update filters run in SQL; the framework filter runs on the decoded
// documents.
func (s *Store) ListPolicies(ctx context.Context, filter storage.PolicyFilter) ([]*policy.Policy, error) {
	query := `SELECT data FROM policies WHERE 1=1`
	var args []any
	if filter.OrgID != "" {
		query += ` AND org_id = ?`
		args = append(args, filter.OrgID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AutoUpdate != nil {
		query += ` AND auto_update = ?`
		args = append(args, *filter.AutoUpdate)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.NewError(backend, "list_policies", err)
	}
	defer rows.Close()

	out := []*policy.Policy{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storage.NewError(backend, "list_policies", err)
		}
		var p policy.Policy
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, storage.NewError(backend, "list_policies", err)
		}
		if filter.Matches(&p) {
			out = append(out, &p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(backend, "list_policies", err)
	}
	return out, nil
}

// UpdatePolicy implements storage.PolicyRepository.
func (s *Store) UpdatePolicy(ctx context.Context, p *policy.Policy, approvals ...*policy.Approval) error {
	for _, a := range approvals {
		if a.PolicyID != p.ID {
			return fmt.Errorf("approval %s belongs to policy %s, not %s", a.ID, a.PolicyID, p.ID)
		}
	}

	next := p.Clone()
	next.Revision++
	data, err := json.Marshal(next)
	if err != nil {
		return storage.NewError(backend, "update_policy", err)
	}

	var saved []int64
	err = s.withTx(ctx, "update_policy", func(tx *sql.Tx) error {
		stored, err := getPolicy(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if stored.Revision != p.Revision {
			return &storage.ConflictError{Kind: "policy", ID: p.ID, Base: p.Revision, Current: stored.Revision}
		}
		if err := storage.CheckPolicyHistory(stored, p); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE policies
			SET org_id = ?, template_id = ?, status = ?, auto_update = ?, revision = ?, data = ?, updated_at = ?
			WHERE id = ? AND revision = ?`,
			next.OrgID, next.TemplateID, string(next.Status), next.AutoUpdate, next.Revision,
			string(data), next.UpdatedAt.UTC(), p.ID, p.Revision)
		if err != nil {
			return err
		}

		saved, err = putApprovals(ctx, tx, approvals)
		return err
	})
	if err != nil {
		return err
	}

	p.Revision = next.Revision
	for i, a := range approvals {
		a.Revision = saved[i]
	}
	return nil
}

// GetApproval implements storage.ApprovalRepository.
func (s *Store) GetApproval(ctx context.Context, id string) (*policy.Approval, error) {
	a, err := getApproval(ctx, s.db, id)
	if err != nil {
		return nil, wrap("get_approval", err)
	}
	return a, nil
}

// ListApprovals implements storage.ApprovalRepository.
func (s *Store) ListApprovals(ctx context.Context, policyID string) ([]*policy.Approval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM approvals WHERE policy_id = ? ORDER BY step, role`, policyID)
	if err != nil {
		return nil, storage.NewError(backend, "list_approvals", err)
	}
	defer rows.Close()

	out := []*policy.Approval{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storage.NewError(backend, "list_approvals", err)
		}
		var a policy.Approval
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, storage.NewError(backend, "list_approvals", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(backend, "list_approvals", err)
	}
	return out, nil
}

// UpdateApprovals implements storage.ApprovalRepository.
func (s *Store) UpdateApprovals(ctx context.Context, approvals ...*policy.Approval) error {
	var saved []int64
	err := s.withTx(ctx, "update_approvals", func(tx *sql.Tx) error {
		for _, a := range approvals {
			if _, err := getApproval(ctx, tx, a.ID); err != nil {
				return err
			}
		}
		var err error
		saved, err = putApprovals(ctx, tx, approvals)
		return err
	})
	if err != nil {
		return err
	}
	for i, a := range approvals {
		a.Revision = saved[i]
	}
	return nil
}

// SaveClause implements storage.ClauseRepository.
func (s *Store) SaveClause(ctx context.Context, c *policy.Clause, baseRevision int64) error {
	next := *c
	next.Revision = baseRevision + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return storage.NewError(backend, "save_clause", err)
	}

	err = s.withTx(ctx, "save_clause", func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT revision FROM clauses WHERE id = ?`, c.ID).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO clauses (id, revision, data, updated_at) VALUES (?, ?, ?, ?)`,
				c.ID, next.Revision, string(data), time.Now().UTC())
			return err
		case err != nil:
			return err
		case current != baseRevision:
			return &storage.ConflictError{Kind: "clause", ID: c.ID, Base: baseRevision, Current: current}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE clauses SET revision = ?, data = ?, updated_at = ? WHERE id = ?`,
			next.Revision, string(data), time.Now().UTC(), c.ID)
		return err
	})
	if err != nil {
		return err
	}
	c.Revision = next.Revision
	return nil
}

// GetClause implements storage.ClauseRepository.
func (s *Store) GetClause(ctx context.Context, id string) (*policy.Clause, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM clauses WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("clause %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, storage.NewError(backend, "get_clause", err)
	}
	var c policy.Clause
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, storage.NewError(backend, "get_clause", err)
	}
	return &c, nil
}

// ListClauses implements storage.ClauseRepository.
func (s *Store) ListClauses(ctx context.Context) ([]*policy.Clause, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM clauses ORDER BY id`)
	if err != nil {
		return nil, storage.NewError(backend, "list_clauses", err)
	}
	defer rows.Close()

	out := []*policy.Clause{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storage.NewError(backend, "list_clauses", err)
		}
		var c policy.Clause
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, storage.NewError(backend, "list_clauses", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewError(backend, "list_clauses", err)
	}
	return out, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPolicy(ctx context.Context, q queryer, id string) (*policy.Policy, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM policies WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var p policy.Policy
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func getApproval(ctx context.Context, q queryer, id string) (*policy.Approval, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM approvals WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var a policy.Approval
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// putApprovals checks and writes approvals inside tx and returns their new
// revisions in input order.
func putApprovals(ctx context.Context, tx *sql.Tx, approvals []*policy.Approval) ([]int64, error) {
	revisions := make([]int64, len(approvals))
	for i, a := range approvals {
		stored, err := getApproval(ctx, tx, a.ID)
		exists := err == nil
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		switch {
		case !exists && a.Revision != 0:
			return nil, err
		case exists && stored.Revision != a.Revision:
			return nil, &storage.ConflictError{Kind: "approval", ID: a.ID, Base: a.Revision, Current: stored.Revision}
		case exists:
			if err := storage.CheckComments(stored, a); err != nil {
				return nil, err
			}
		}

		next := a.Clone()
		next.Revision++
		data, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}

		if exists {
			_, err = tx.ExecContext(ctx,
				`UPDATE approvals SET step = ?, role = ?, revision = ?, data = ? WHERE id = ?`,
				next.Step, string(next.Role), next.Revision, string(data), next.ID)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO approvals (id, policy_id, step, role, revision, data) VALUES (?, ?, ?, ?, ?, ?)`,
				next.ID, next.PolicyID, next.Step, string(next.Role), next.Revision, string(data))
		}
		if err != nil {
			return nil, err
		}
		revisions[i] = next.Revision
	}
	return revisions, nil
}

// withTx runs fn in a transaction. Domain errors (not found, conflicts,
// history violations) are returned as is; driver errors are wrapped.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.NewError(backend, op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.NewError(backend, op, err)
	}
	return nil
}

func wrap(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrAlreadyExists) ||
		errors.Is(err, storage.ErrRevisionConflict) ||
		errors.Is(err, storage.ErrAppendOnlyViolation) {
		return err
	}
	return storage.NewError(backend, op, err)
}
