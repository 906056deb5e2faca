// Copyright © 2024 The ELPS authors

// Package store persists analysis runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luthersystems/bsl/analysis"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  created_utc TEXT NOT NULL,
  root        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS functions (
  run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  variant     TEXT NOT NULL,
  key         TEXT NOT NULL,
  kind        TEXT NOT NULL,
  module      TEXT NOT NULL,
  name        TEXT NOT NULL,
  export      INTEGER NOT NULL,
  is_function INTEGER NOT NULL,
  directive   TEXT NOT NULL,
  file        TEXT NOT NULL,
  line        INTEGER NOT NULL,
  PRIMARY KEY (run_id, variant, key)
);
CREATE TABLE IF NOT EXISTS calls (
  run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  variant   TEXT NOT NULL,
  caller    TEXT NOT NULL,
  callee    TEXT NOT NULL,
  file      TEXT NOT NULL,
  line      INTEGER NOT NULL,
  col       INTEGER NOT NULL,
  rewritten INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_caller ON calls (run_id, variant, caller);
CREATE INDEX IF NOT EXISTS calls_callee ON calls (run_id, variant, callee);
`

// Run summarizes a saved analysis run.
type Run struct {
	ID        uuid.UUID
	Created   time.Time
	Root      string
	Functions int
	Calls     int
}

// Store is a database of analysis runs.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens the database at path, creating it if necessary.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores the registries and call graphs of c as a new run and returns
// its id.  root identifies the analyzed configuration.
func (s *Store) Save(ctx context.Context, root string, c *analysis.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (id, created_utc, root) VALUES (?, ?, ?)`,
		id.String(), time.Now().UTC().Format(time.RFC3339Nano), root)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save run: %w", err)
	}
	for _, r := range c.Results() {
		if err := saveResult(ctx, tx, id, r); err != nil {
			return uuid.Nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

func saveResult(ctx context.Context, tx *sql.Tx, id uuid.UUID, r *analysis.Result) error {
	variant := r.Variant.String()
	fnStmt, err := tx.PrepareContext(ctx, `
INSERT INTO functions (run_id, variant, key, kind, module, name, export, is_function, directive, file, line)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare functions: %w", err)
	}
	defer fnStmt.Close()
	for _, f := range r.Registry.Functions() {
		file, line := "", 0
		if f.Source != nil {
			file, line = f.Source.File, f.Source.Line
		}
		_, err := fnStmt.ExecContext(ctx, id.String(), variant, f.Key, f.Kind.String(), f.Module, f.Name,
			f.Export, f.Function, f.Directive, file, line)
		if err != nil {
			return fmt.Errorf("save function %s: %w", f.Key, err)
		}
	}

	callStmt, err := tx.PrepareContext(ctx, `
INSERT INTO calls (run_id, variant, caller, callee, file, line, col, rewritten)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare calls: %w", err)
	}
	defer callStmt.Close()
	for _, e := range r.Graph.Edges() {
		for _, site := range e.Sites {
			file, line, col := "", 0, 0
			if site.Source != nil {
				file, line, col = site.Source.File, site.Source.Line, site.Source.Col
			}
			_, err := callStmt.ExecContext(ctx, id.String(), variant, e.Caller, e.Callee, file, line, col,
				site.Rewritten)
			if err != nil {
				return fmt.Errorf("save call %s -> %s: %w", e.Caller, e.Callee, err)
			}
		}
	}
	return nil
}

// Runs returns the saved runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.created_utc, r.root,
  (SELECT COUNT(*) FROM functions f WHERE f.run_id = r.id),
  (SELECT COUNT(*) FROM calls c WHERE c.run_id = r.id)
FROM runs r
ORDER BY r.created_utc ASC, r.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			idRaw, raw string
		)
		if err := rows.Scan(&idRaw, &raw, &run.Root, &run.Functions, &run.Calls); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(idRaw); err != nil {
			return nil, fmt.Errorf("run id %q: %w", idRaw, err)
		}
		if run.Created, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("run %s timestamp %q: %w", idRaw, raw, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Callees returns the sorted distinct functions that caller calls in the
// given run and variant.
func (s *Store) Callees(ctx context.Context, id uuid.UUID, v analysis.Variant, caller string) ([]string, error) {
	return s.strings(ctx, `
SELECT DISTINCT callee FROM calls WHERE run_id = ? AND variant = ? AND caller = ? ORDER BY callee`,
		id.String(), v.String(), caller)
}

// Callers returns the sorted distinct functions that call callee in the
// given run and variant.
func (s *Store) Callers(ctx context.Context, id uuid.UUID, v analysis.Variant, callee string) ([]string, error) {
	return s.strings(ctx, `
SELECT DISTINCT caller FROM calls WHERE run_id = ? AND variant = ? AND callee = ? ORDER BY caller`,
		id.String(), v.String(), callee)
}

// Delete removes a run with its functions and calls.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
