package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/charter/pkg/evidence"
)

// timeLayout sorts lexically in the same order as the instants it encodes.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/evidence.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements evidence.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the evidence database.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, evidence.NewStorageError("sqlite", "open", fmt.Errorf("db path cannot be empty"))
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, evidence.NewStorageError("sqlite", "open", err)
		}
	}

	logger := slog.Default().With("component", "evidence.storage.sqlite")

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", config.Path, config.BusyTimeout.Milliseconds())
	if config.WALMode {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}

	// SQLite allows a single writer; one connection avoids lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite evidence storage initialized", "path", config.Path, "wal_mode", config.WALMode)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store implements evidence.Storage.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.Record) error {
	var attributes any
	if len(record.Attributes) > 0 {
		data, err := json.Marshal(record.Attributes)
		if err != nil {
			return evidence.NewStorageError("sqlite", "store", err)
		}
		attributes = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (
			id, kind, subject_id, org_id, actor, role,
			outcome, error, summary, content_hash, revision,
			library_source, attributes, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.Kind), record.SubjectID, nullable(record.OrgID), nullable(record.Actor), nullable(record.Role),
		record.Outcome, nullable(record.Error), nullable(record.Summary), nullable(record.ContentHash), record.Revision,
		nullable(record.LibrarySource), attributes, record.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query implements evidence.Storage.
func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	where, args := buildWhere(query)

	order := "DESC"
	if query.SortOrder == "asc" {
		order = "ASC"
	}
	stmt := fmt.Sprintf(`
		SELECT id, kind, subject_id, org_id, actor, role,
		       outcome, error, summary, content_hash, revision,
		       library_source, attributes, recorded_at
		FROM evidence%s
		ORDER BY recorded_at %s, id ASC`, where, order)

	if query.Limit > 0 {
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, query.Limit, query.Offset)
	} else if query.Offset > 0 {
		stmt += " LIMIT -1 OFFSET ?"
		args = append(args, query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	results := []*evidence.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "query", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return results, nil
}

// Count implements evidence.Storage.
func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhere(query)

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evidence"+where, args...).Scan(&n); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Close implements evidence.Storage.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func buildWhere(q *evidence.Query) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}

	if q.Kind != "" {
		add("kind = ?", string(q.Kind))
	}
	if q.SubjectID != "" {
		add("subject_id = ?", q.SubjectID)
	}
	if q.OrgID != "" {
		add("org_id = ?", q.OrgID)
	}
	if q.Actor != "" {
		add("actor = ?", q.Actor)
	}
	if q.Outcome != "" {
		add("outcome = ?", q.Outcome)
	}
	if q.StartTime != nil {
		add("recorded_at >= ?", q.StartTime.UTC().Format(timeLayout))
	}
	if q.EndTime != nil {
		add("recorded_at <= ?", q.EndTime.UTC().Format(timeLayout))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*evidence.Record, error) {
	var (
		r                                                 evidence.Record
		kind, recordedAt                                  string
		orgID, actor, role, errMsg, summary, hash, source sql.NullString
		attributes                                        sql.NullString
		revision                                          sql.NullInt64
	)
	err := row.Scan(&r.ID, &kind, &r.SubjectID, &orgID, &actor, &role,
		&r.Outcome, &errMsg, &summary, &hash, &revision,
		&source, &attributes, &recordedAt)
	if err != nil {
		return nil, err
	}

	r.Kind = evidence.Kind(kind)
	r.OrgID = orgID.String
	r.Actor = actor.String
	r.Role = role.String
	r.Error = errMsg.String
	r.Summary = summary.String
	r.ContentHash = hash.String
	r.LibrarySource = source.String
	r.Revision = revision.Int64

	if attributes.Valid && attributes.String != "" {
		if err := json.Unmarshal([]byte(attributes.String), &r.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
		}
	}

	if r.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
		return nil, fmt.Errorf("decode recorded_at of %s: %w", r.ID, err)
	}
	return &r, nil
}

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
