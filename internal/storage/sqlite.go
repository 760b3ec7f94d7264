package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pyfreeze/internal/graph"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNoRuns is returned by LatestRun on an empty database.
var ErrNoRuns = errors.New("no runs recorded")

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP,
			platform TEXT,
			output_dir TEXT,
			warnings INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS modules (
			run_id TEXT,
			name TEXT,
			kind TEXT,
			file TEXT,
			PRIMARY KEY (run_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT,
			from_name TEXT,
			to_name TEXT,
			kind TEXT,
			PRIMARY KEY (run_id, from_name, to_name, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS unresolved (
			run_id TEXT,
			importer TEXT,
			target TEXT,
			reason TEXT,
			conditional INTEGER,
			filepath TEXT,
			line INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, g *graph.Graph) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, platform, output_dir, warnings) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at=excluded.started_at,
			platform=excluded.platform,
			output_dir=excluded.output_dir,
			warnings=excluded.warnings
	`, run.ID, run.StartedAt.UTC(), run.Platform, run.OutputDir, run.Warnings); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	// Replace any previous snapshot of this run.
	for _, table := range []string{"modules", "edges", "unresolved"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", run.ID); err != nil {
			return err
		}
	}

	modStmt, err := tx.PrepareContext(ctx, `INSERT INTO modules (run_id, name, kind, file) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer modStmt.Close()
	for _, m := range g.Modules() {
		if _, err := modStmt.ExecContext(ctx, run.ID, m.Name, m.Kind, m.File); err != nil {
			return err
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (run_id, from_name, to_name, kind) VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, from_name, to_name, kind) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	for _, edge := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, run.ID, edge.From, edge.To, edge.Kind); err != nil {
			return err
		}
	}

	unresolvedStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unresolved (run_id, importer, target, reason, conditional, filepath, line) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer unresolvedStmt.Close()
	for _, u := range g.Unresolved {
		if _, err := unresolvedStmt.ExecContext(ctx, run.ID, u.From, u.Target, u.Reason, u.Conditional, u.Evidence.Filepath, u.Evidence.Line); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadGraph(ctx context.Context, runID string) (*graph.Graph, error) {
	g := graph.NewGraph()

	// 1. Load Modules
	rows, err := s.db.QueryContext(ctx, "SELECT name, kind, file FROM modules WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m graph.Module
		if err := rows.Scan(&m.Name, &m.Kind, &m.File); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		g.AddModule(&m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_name, to_name, kind FROM edges WHERE run_id = ? ORDER BY from_name, to_name", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge graph.Edge
		if err := edgeRows.Scan(&edge.From, &edge.To, &edge.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	// 3. Load unresolved imports
	uRows, err := s.db.QueryContext(ctx, "SELECT importer, target, reason, conditional, filepath, line FROM unresolved WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved imports: %w", err)
	}
	defer uRows.Close()

	for uRows.Next() {
		var u graph.UnresolvedImport
		if err := uRows.Scan(&u.From, &u.Target, &u.Reason, &u.Conditional, &u.Evidence.Filepath, &u.Evidence.Line); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved import: %w", err)
		}
		g.Unresolved = append(g.Unresolved, u)
	}
	if err := uRows.Err(); err != nil {
		return nil, err
	}

	g.RebuildIndices()
	return g, nil
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, started_at, platform, output_dir, warnings FROM runs ORDER BY started_at DESC LIMIT 1")

	var run Run
	if err := row.Scan(&run.ID, &run.StartedAt, &run.Platform, &run.OutputDir, &run.Warnings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRuns
		}
		return nil, err
	}
	return &run, nil
}
