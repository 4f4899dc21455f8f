package state

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore keeps snapshots as JSON rows in a SQLite database.
type SQLiteStore[T any] struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a private in-memory database.
func OpenSQLiteStore[T any](ctx context.Context, path string) (*SQLiteStore[T], error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("state: create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite store: %w", err)
	}
	// SQLite serialises writers; one connection also keeps :memory: databases
	// alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store, err := NewSQLiteStore[T](ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an open database and applies the schema.
func NewSQLiteStore[T any](ctx context.Context, db *sql.DB) (*SQLiteStore[T], error) {
	if db == nil {
		return nil, fmt.Errorf("state: database is required")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("state: ping sqlite store: %w", err)
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("state: read schema.sql: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &SQLiteStore[T]{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore[T]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	var (
		meta    Meta
		extra   string
		payload string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id, etag, extra, payload, updated_at FROM resolved_configs WHERE id = ?`, key)
	if err := row.Scan(&meta.SnapshotID, &meta.ETag, &extra, &payload, &meta.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, Meta{}, false, nil
		}
		return zero, Meta{}, false, fmt.Errorf("state: load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(extra), &meta.Extra); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode extra for %s: %w", key, err)
	}
	var snapshot T
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode snapshot %s: %w", key, err)
	}
	return snapshot, meta, true, nil
}

func (s *SQLiteStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode snapshot %s: %w", key, err)
	}
	extra := []byte("{}")
	if len(meta.Extra) > 0 {
		if extra, err = json.Marshal(meta.Extra); err != nil {
			return Meta{}, fmt.Errorf("state: encode extra for %s: %w", key, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("state: begin save %s: %w", key, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT etag FROM resolved_configs WHERE id = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Meta{}, fmt.Errorf("state: read etag for %s: %w", key, err)
	}
	if err := checkETag(meta.ETag, current); err != nil {
		return Meta{}, err
	}

	saved := cloneMeta(meta)
	saved.ETag = nextETag(current)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO resolved_configs (id, study, case_id, planning_year, snapshot_id, etag, extra, payload, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    snapshot_id = excluded.snapshot_id,
    etag = excluded.etag,
    extra = excluded.extra,
    payload = excluded.payload,
    updated_at = excluded.updated_at`,
		key, ref.Study, ref.CaseID, ref.PlanningYear, saved.SnapshotID, saved.ETag, string(extra), string(payload), saved.UpdatedAt)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("state: commit %s: %w", key, err)
	}
	return cloneMeta(saved), nil
}

// Refs lists the stored references of study ordered by year and case.
func (s *SQLiteStore[T]) Refs(ctx context.Context, study string) ([]Ref, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT case_id, planning_year FROM resolved_configs WHERE study = ? ORDER BY planning_year, case_id`, study)
	if err != nil {
		return nil, fmt.Errorf("state: list %s: %w", study, err)
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		ref := Ref{Study: study}
		if err := rows.Scan(&ref.CaseID, &ref.PlanningYear); err != nil {
			return nil, fmt.Errorf("state: scan %s: %w", study, err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
