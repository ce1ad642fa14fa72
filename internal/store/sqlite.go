package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

const timeFormat = time.RFC3339

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Tasks ---

func (s *SQLiteStore) ReadTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, status FROM tasks ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		var t task.Task
		var status string
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &status); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		t.Status = task.Status(status)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// WriteTask upserts one task. A new id is appended after the current last
// position.
func (s *SQLiteStore) WriteTask(ctx context.Context, t task.Task) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (id, position, title, description, status, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks), ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		t.ID, t.Title, t.Description, string(t.Status), formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("writing task %s: %w", t.ID, err)
	}
	return nil
}

// WriteTasks replaces the whole board in one transaction.
func (s *SQLiteStore) WriteTasks(ctx context.Context, tasks []task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}

	now := formatTime(time.Now().UTC())
	for i, t := range tasks {
		_, err := tx.ExecContext(ctx, `INSERT INTO tasks (id, position, title, description, status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, i, t.Title, t.Description, string(t.Status), now)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tasks: %w", err)
	}
	return nil
}

// --- Subscriptions ---

func (s *SQLiteStore) ReadSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, endpoint, p256dh, auth, created_at FROM subscriptions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []subscription.Subscription
	for rows.Next() {
		var sub subscription.Subscription
		var createdAt string
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.Keys.P256dh, &sub.Keys.Auth, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		sub.CreatedAt = parseTime(createdAt)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) WriteSubscription(ctx context.Context, sub subscription.Subscription) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO subscriptions (id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, formatTime(sub.CreatedAt))
	if err != nil {
		return fmt.Errorf("storing subscription: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSubscription(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// --- Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}
