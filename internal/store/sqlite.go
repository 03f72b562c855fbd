// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides schema auto-creation and resets stale presence flags at boot

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
)

// timeFormat is the storage format for timestamps. Nanosecond precision
// keeps ORDER BY stable for messages created in the same second.
const timeFormat = time.RFC3339Nano

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist and all user
// presence flags are reset to offline: the connection registry is
// rebuilt empty on restart, so any "online" flag left over from a
// previous run is stale.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.resetPresence(); err != nil {
		db.Close()
		return nil, fmt.Errorf("resetting presence: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'member',
			is_online     INTEGER NOT NULL DEFAULT 0,
			last_seen     TEXT,
			created_at    TEXT NOT NULL,

			CHECK (role IN ('member', 'admin', 'compliance_officer', 'auditor'))
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS conversations (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			name                TEXT NOT NULL DEFAULT '',
			type                TEXT NOT NULL,
			is_encrypted        INTEGER NOT NULL DEFAULT 0,
			retention_policy_id INTEGER REFERENCES retention_policies(id),
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,

			CHECK (type IN ('direct', 'group'))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

		CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			user_id         INTEGER NOT NULL REFERENCES users(id),
			role            TEXT NOT NULL DEFAULT 'member',
			joined_at       TEXT NOT NULL,

			PRIMARY KEY (conversation_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			sender_id       INTEGER NOT NULL REFERENCES users(id),
			content         TEXT NOT NULL,
			type            TEXT NOT NULL DEFAULT 'text',
			classification  TEXT NOT NULL DEFAULT 'general',
			priority        TEXT NOT NULL DEFAULT 'normal',
			requires_ack    INTEGER NOT NULL DEFAULT 0,
			content_hash    TEXT NOT NULL DEFAULT '',
			is_deleted      INTEGER NOT NULL DEFAULT 0,
			is_edited       INTEGER NOT NULL DEFAULT 0,
			read_by         TEXT NOT NULL DEFAULT '[]',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS files (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id    INTEGER NOT NULL REFERENCES messages(id),
			filename      TEXT NOT NULL,
			original_name TEXT NOT NULL,
			mime_type     TEXT NOT NULL,
			size          INTEGER NOT NULL,
			encrypted_key TEXT,
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_files_message ON files(message_id);

		CREATE TABLE IF NOT EXISTS message_acknowledgments (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id      INTEGER NOT NULL REFERENCES messages(id),
			user_id         INTEGER NOT NULL REFERENCES users(id),
			acknowledged_at TEXT NOT NULL,
			ip_address      TEXT NOT NULL DEFAULT '',
			user_agent      TEXT NOT NULL DEFAULT '',

			UNIQUE (message_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS retention_policies (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			name           TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			retention_days INTEGER NOT NULL,
			is_active      INTEGER NOT NULL DEFAULT 1,
			created_by     INTEGER NOT NULL REFERENCES users(id),
			created_at     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS access_logs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id       INTEGER NOT NULL REFERENCES users(id),
			action        TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id   INTEGER NOT NULL,
			ip_address    TEXT NOT NULL DEFAULT '',
			user_agent    TEXT NOT NULL DEFAULT '',
			ts            TEXT NOT NULL,

			CHECK (action IN ('create', 'read', 'update', 'delete', 'acknowledge'))
		);

		CREATE INDEX IF NOT EXISTS idx_access_logs_resource
			ON access_logs(resource_type, resource_id);

		CREATE TABLE IF NOT EXISTS audit_trails (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type    TEXT NOT NULL,
			user_id       INTEGER NOT NULL REFERENCES users(id),
			resource_type TEXT NOT NULL,
			resource_id   INTEGER NOT NULL,
			old_values    TEXT,
			new_values    TEXT,
			ip_address    TEXT NOT NULL DEFAULT '',
			user_agent    TEXT NOT NULL DEFAULT '',
			ts            TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_trails_resource
			ON audit_trails(resource_type, resource_id);
		CREATE INDEX IF NOT EXISTS idx_audit_trails_event ON audit_trails(event_type);
		CREATE INDEX IF NOT EXISTS idx_audit_trails_ts ON audit_trails(ts);

		CREATE TABLE IF NOT EXISTS compliance_reports (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			report_type  TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			generated_by INTEGER NOT NULL REFERENCES users(id),
			report_data  TEXT,
			generated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reports_type ON compliance_reports(report_type);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// resetPresence clears all online flags. The connection registry owns
// live presence and starts empty, so the flags cannot be trusted after
// a restart.
func (s *SQLiteStore) resetPresence() error {
	res, err := s.db.Exec("UPDATE users SET is_online = 0 WHERE is_online = 1")
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Info("reset stale presence flags", "users", n)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// formatTime renders t for storage
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime parses a stored timestamp
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Older rows may carry second precision
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers
type scanner interface{ Scan(dest ...any) error }
