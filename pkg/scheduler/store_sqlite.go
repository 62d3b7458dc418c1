package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/schedule"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id               TEXT PRIMARY KEY,
	agent_id         TEXT NOT NULL,
	callback         TEXT NOT NULL,
	payload          TEXT NOT NULL DEFAULT '',
	type             TEXT NOT NULL,
	time_ms          INTEGER NOT NULL,
	delay_in_seconds INTEGER NOT NULL DEFAULT 0,
	cron             TEXT NOT NULL DEFAULT '',
	created_at_ms    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_agent ON scheduled_tasks(agent_id);
`

// SQLiteStore keeps tasks in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads all tasks
func (s *SQLiteStore) Load(ctx context.Context) ([]runtime.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, callback, payload, type, time_ms, delay_in_seconds, cron, created_at_ms
		FROM scheduled_tasks
		ORDER BY created_at_ms`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []runtime.Task
	for rows.Next() {
		var (
			task      runtime.Task
			kind      string
			timeMs    int64
			createdMs int64
		)
		if err := rows.Scan(&task.ID, &task.AgentID, &task.Callback, &task.Payload, &kind,
			&timeMs, &task.DelayInSeconds, &task.Cron, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Type = schedule.Kind(kind)
		task.Time = time.UnixMilli(timeMs)
		task.CreatedAt = time.UnixMilli(createdMs)
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// Put inserts or replaces a task
func (s *SQLiteStore) Put(ctx context.Context, task runtime.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (id, agent_id, callback, payload, type, time_ms, delay_in_seconds, cron, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_id = excluded.agent_id,
			callback = excluded.callback,
			payload = excluded.payload,
			type = excluded.type,
			time_ms = excluded.time_ms,
			delay_in_seconds = excluded.delay_in_seconds,
			cron = excluded.cron`,
		task.ID, task.AgentID, task.Callback, task.Payload, string(task.Type),
		task.Time.UnixMilli(), task.DelayInSeconds, task.Cron, task.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Delete removes a task; unknown IDs are ignored
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
