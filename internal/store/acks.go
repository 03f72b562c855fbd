// ABOUTME: Message acknowledgment store methods
// ABOUTME: Enforces the one-acknowledgment-per-(message,user) invariant via a unique index

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateAcknowledgment records a user's acknowledgment of a message and
// appends the audit entry and access log in the same transaction.
// Returns ErrDuplicateAck when the (message, user) pair already exists;
// nothing is written in that case.
func (s *SQLiteStore) CreateAcknowledgment(ctx context.Context, a *MessageAcknowledgment, audit *AuditEntry, access *AccessLog) error {
	if a.AcknowledgedAt.IsZero() {
		a.AcknowledgedAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO message_acknowledgments (message_id, user_id, acknowledged_at, ip_address, user_agent)
			VALUES (?, ?, ?, ?, ?)
		`,
			a.MessageID,
			a.UserID,
			formatTime(a.AcknowledgedAt),
			a.IPAddress,
			a.UserAgent,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateAck
			}
			return fmt.Errorf("inserting acknowledgment: %w", err)
		}

		if a.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading acknowledgment id: %w", err)
		}

		if audit != nil {
			audit.ResourceID = a.MessageID
			if err := insertAuditEntry(ctx, tx, audit); err != nil {
				return err
			}
		}
		if access != nil {
			access.ResourceID = a.MessageID
			if err := insertAccessLog(ctx, tx, access); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("recorded acknowledgment",
		"id", a.ID,
		"message_id", a.MessageID,
		"user_id", a.UserID,
	)
	return nil
}

// ListAcknowledgments returns all acknowledgments for a message, newest
// first, with their users attached.
func (s *SQLiteStore) ListAcknowledgments(ctx context.Context, messageID int64) ([]*AckWithUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.message_id, a.user_id, a.acknowledged_at, a.ip_address, a.user_agent,
			`+prefixedUserColumns("u")+`
		FROM message_acknowledgments a
		JOIN users u ON u.id = a.user_id
		WHERE a.message_id = ?
		ORDER BY a.acknowledged_at DESC, a.id DESC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying acknowledgments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var acks []*AckWithUser
	for rows.Next() {
		var a AckWithUser
		var ackedAt string
		var u User
		var online int
		var lastSeen *string
		var userCreatedAt string

		if err := rows.Scan(
			&a.ID, &a.MessageID, &a.UserID, &ackedAt, &a.IPAddress, &a.UserAgent,
			&u.ID, &u.Username, &u.PasswordHash, &u.Role, &online, &lastSeen, &userCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning acknowledgment: %w", err)
		}

		if a.AcknowledgedAt, err = parseTime(ackedAt); err != nil {
			return nil, err
		}
		u.IsOnline = online != 0
		if lastSeen != nil {
			t, err := parseTime(*lastSeen)
			if err != nil {
				return nil, err
			}
			u.LastSeen = &t
		}
		if u.CreatedAt, err = parseTime(userCreatedAt); err != nil {
			return nil, err
		}

		a.User = &u
		acks = append(acks, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating acknowledgments: %w", err)
	}

	if acks == nil {
		acks = []*AckWithUser{}
	}
	return acks, nil
}
