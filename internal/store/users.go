// ABOUTME: User store methods for registration, lookup and presence updates
// ABOUTME: Usernames are unique; accounts are never hard-deleted

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateUser inserts a new user and fills in its generated ID.
// Returns ErrDuplicateUsername when the username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleMember
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, is_online, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		u.Username,
		u.PasswordHash,
		u.Role,
		boolToInt(u.IsOnline),
		nullableTime(u.LastSeen),
		formatTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	u.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}

	s.logger.Debug("created user", "id", u.ID, "username", u.Username, "role", u.Role)
	return nil
}

const userColumns = "id, username, password_hash, role, is_online, last_seen, created_at"

// GetUser returns the user with the given ID or ErrNotFound.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// GetUserByUsername returns the user with the given username or ErrNotFound.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return scanUser(row)
}

// SetUserPresence flips the online flag and stamps last_seen.
func (s *SQLiteStore) SetUserPresence(ctx context.Context, id int64, online bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?",
		boolToInt(online), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating presence: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanUser scans a user row
func scanUser(sc scanner) (*User, error) {
	var u User
	var online int
	var lastSeen *string
	var createdAt string

	err := sc.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &online, &lastSeen, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.IsOnline = online != 0
	if lastSeen != nil {
		t, err := parseTime(*lastSeen)
		if err != nil {
			return nil, err
		}
		u.LastSeen = &t
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
