package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

// SQLiteAuditSink is a pkg/router.Sink, not an Orchestrator: it appends
// every dispatched WorkItem to a durable audit table and never feeds
// back into routing decisions. WAL mode and the connection-opening
// sequence follow the teacher-adjacent state.Open pattern (create parent
// dir, open, enable WAL).
type SQLiteAuditSink struct {
	conn *sql.DB
	mu   sync.Mutex
	path string
}

// OpenSQLiteAuditSink opens (creating if necessary) a SQLite database at
// path and ensures the audit table exists.
func OpenSQLiteAuditSink(path string) (*SQLiteAuditSink, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	sink := &SQLiteAuditSink{conn: conn, path: path}
	if err := sink.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return sink, nil
}

func (s *SQLiteAuditSink) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS routed_work_items (
			task_id TEXT NOT NULL,
			strategy TEXT NOT NULL,
			priority REAL NOT NULL,
			attention_load REAL NOT NULL,
			queue_depth INTEGER NOT NULL,
			rule_fired TEXT NOT NULL,
			decided_at DATETIME NOT NULL,
			work_item_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_routed_work_items_task_id ON routed_work_items(task_id);
		CREATE INDEX IF NOT EXISTS idx_routed_work_items_strategy ON routed_work_items(strategy);
	`)
	if err != nil {
		return fmt.Errorf("create routed_work_items table: %w", err)
	}
	return nil
}

// Dispatch persists item as a new audit row. It never mutates or
// deduplicates against prior rows — the audit log is append-only.
func (s *SQLiteAuditSink) Dispatch(_ context.Context, item models.WorkItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal work item for audit: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.conn.Exec(`
		INSERT INTO routed_work_items
			(task_id, strategy, priority, attention_load, queue_depth, rule_fired, decided_at, work_item_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.Task.TaskID, string(item.Strategy), item.Priority, item.AttentionLoad, item.QueueDepth,
		item.Rationale.RuleFired, item.DecidedAt.UTC().Format(time.RFC3339), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// CountByStrategy returns how many audit rows exist for strategy, used
// by tests.
func (s *SQLiteAuditSink) CountByStrategy(strategy models.Strategy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	row := s.conn.QueryRow(`SELECT COUNT(*) FROM routed_work_items WHERE strategy = ?`, string(strategy))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit rows: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (s *SQLiteAuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
