package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a file-backed Store using the pure-Go SQLite driver
// (no cgo). Suited to single-host deployments and durable local runs.
//
// Use ":memory:" as the path for an ephemeral database in tests; set
// MaxOpenConns to 1 in that case, which NewSQLiteStore does
// automatically, since each in-memory connection is its own database.
type SQLiteStore[S any] struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// prepares the schema. WAL mode is enabled for concurrent readers.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS thread_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(thread_id, step)
		);
		CREATE INDEX IF NOT EXISTS idx_thread_steps_thread ON thread_steps(thread_id);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore[S]{db: db}, nil
}

// SaveStep implements Store.
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, threadID string, step int, nodeID string, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(step) FROM thread_steps WHERE thread_id = ?`, threadID,
	).Scan(&latest)
	if err != nil {
		return fmt.Errorf("query latest step: %w", err)
	}
	expected := 0
	if latest.Valid {
		expected = int(latest.Int64) + 1
	}
	if step != expected {
		return fmt.Errorf("%w: got %d, expected %d", ErrStepConflict, step, expected)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO thread_steps (thread_id, step, node_id, state) VALUES (?, ?, ?, ?)`,
		threadID, step, nodeID, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return tx.Commit()
}

// LoadLatest implements Store.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, threadID string) (StepRecord[S], error) {
	var (
		rec  StepRecord[S]
		data string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT step, node_id, state FROM thread_steps
		 WHERE thread_id = ? ORDER BY step DESC LIMIT 1`, threadID,
	).Scan(&rec.Step, &rec.NodeID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return StepRecord[S]{}, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	if err != nil {
		return StepRecord[S]{}, fmt.Errorf("query latest step: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
		return StepRecord[S]{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return rec, nil
}

// History implements Store.
func (s *SQLiteStore[S]) History(ctx context.Context, threadID string) ([]StepRecord[S], error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, node_id, state FROM thread_steps
		 WHERE thread_id = ? ORDER BY step ASC`, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []StepRecord[S]
	for rows.Next() {
		var (
			rec  StepRecord[S]
			data string
		)
		if err := rows.Scan(&rec.Step, &rec.NodeID, &data); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
			return nil, fmt.Errorf("unmarshal state at step %d: %w", rec.Step, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	if out == nil {
		out = []StepRecord[S]{}
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}
