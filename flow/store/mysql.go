package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Store for deployments where
// several hosts share one checkpoint database. Contiguity is enforced
// inside a transaction plus a UNIQUE(thread_id, step) key, so two
// processes racing on the same thread cannot both win a step.
//
// Keep credentials out of source; read the DSN from the environment:
//
//	st, err := store.NewMySQLStore[flow.State](os.Getenv("MYSQL_DSN"))
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore connects using a go-sql-driver DSN such as
// "user:pass@tcp(localhost:3306)/flowgraph?parseTime=true", verifies the
// connection, and prepares the schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS thread_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_thread (thread_id),
			UNIQUE KEY unique_thread_step (thread_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create thread_steps table: %w", err)
	}
	return &MySQLStore[S]{db: db}, nil
}

// SaveStep implements Store.
func (m *MySQLStore[S]) SaveStep(ctx context.Context, threadID string, step int, nodeID string, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(step) FROM thread_steps WHERE thread_id = ? FOR UPDATE`, threadID,
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
func (m *MySQLStore[S]) LoadLatest(ctx context.Context, threadID string) (StepRecord[S], error) {
	var (
		rec  StepRecord[S]
		data []byte
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT step, node_id, state FROM thread_steps
		 WHERE thread_id = ? ORDER BY step DESC LIMIT 1`, threadID,
	).Scan(&rec.Step, &rec.NodeID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return StepRecord[S]{}, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	if err != nil {
		return StepRecord[S]{}, fmt.Errorf("query latest step: %w", err)
	}
	if err := json.Unmarshal(data, &rec.State); err != nil {
		return StepRecord[S]{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return rec, nil
}

// History implements Store.
func (m *MySQLStore[S]) History(ctx context.Context, threadID string) ([]StepRecord[S], error) {
	rows, err := m.db.QueryContext(ctx,
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
			data []byte
		)
		if err := rows.Scan(&rec.Step, &rec.NodeID, &data); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal(data, &rec.State); err != nil {
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

// Close releases the connection pool.
func (m *MySQLStore[S]) Close() error {
	return m.db.Close()
}
