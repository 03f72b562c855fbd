// ABOUTME: Message store methods including the transactional create path
// ABOUTME: CreateMessage persists message, conversation bump and compliance records atomically

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// CreateMessage inserts a message, bumps the owning conversation's
// updated_at and appends the given audit entry and access log, all in
// one transaction. The audit entry and access log have their ResourceID
// set to the new message ID before insertion, so the compliance trail
// always points at the entity it describes.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *Message, audit *AuditEntry, access *AccessLog) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.Type == "" {
		m.Type = "text"
	}
	if m.Classification == "" {
		m.Classification = ClassificationGeneral
	}
	if m.Priority == "" {
		m.Priority = "normal"
	}
	if m.ReadBy == nil {
		m.ReadBy = []int64{}
	}

	readBy, err := json.Marshal(m.ReadBy)
	if err != nil {
		return fmt.Errorf("marshaling read_by: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, sender_id, content, type, classification,
				priority, requires_ack, content_hash, is_deleted, is_edited, read_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			m.ConversationID,
			m.SenderID,
			m.Content,
			m.Type,
			m.Classification,
			m.Priority,
			boolToInt(m.RequiresAck),
			m.ContentHash,
			boolToInt(m.IsDeleted),
			boolToInt(m.IsEdited),
			string(readBy),
			formatTime(m.CreatedAt),
			formatTime(m.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}

		if m.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading message id: %w", err)
		}

		// Recency bump drives conversation listing order
		if _, err := tx.ExecContext(ctx,
			"UPDATE conversations SET updated_at = ? WHERE id = ?",
			formatTime(now), m.ConversationID); err != nil {
			return fmt.Errorf("bumping conversation: %w", err)
		}

		if audit != nil {
			audit.ResourceID = m.ID
			if err := insertAuditEntry(ctx, tx, audit); err != nil {
				return err
			}
		}
		if access != nil {
			access.ResourceID = m.ID
			if err := insertAccessLog(ctx, tx, access); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created message",
		"id", m.ID,
		"conversation_id", m.ConversationID,
		"sender_id", m.SenderID,
	)
	return nil
}

const messageColumns = `id, conversation_id, sender_id, content, type, classification,
	priority, requires_ack, content_hash, is_deleted, is_edited, read_by, created_at, updated_at`

// GetMessage returns the message with the given ID or ErrNotFound.
// Soft-deleted messages are still returned; callers decide visibility.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	return scanMessage(row)
}

// GetMessageWithSender returns the message with its sender attached.
func (s *SQLiteStore) GetMessageWithSender(ctx context.Context, id int64) (*MessageWithSender, error) {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	sender, err := s.GetUser(ctx, msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}
	return &MessageWithSender{Message: *msg, Sender: sender}, nil
}

// ListMessages returns the most recent non-deleted messages of a
// conversation in chronological order, senders attached. Limit defaults
// to 50.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64, limit int) ([]*MessageWithSender, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND is_deleted = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	// Query is newest-first for the LIMIT; clients read oldest-first
	slices.Reverse(msgs)

	result := make([]*MessageWithSender, 0, len(msgs))
	senders := make(map[int64]*User)
	for _, m := range msgs {
		sender, ok := senders[m.SenderID]
		if !ok {
			if sender, err = s.GetUser(ctx, m.SenderID); err != nil {
				return nil, fmt.Errorf("loading sender: %w", err)
			}
			senders[m.SenderID] = sender
		}
		result = append(result, &MessageWithSender{Message: *m, Sender: sender})
	}
	return result, nil
}

// UpdateMessageContent replaces the content of a message and marks it
// edited. Conversation and sender are immutable and never touched.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id int64, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, is_edited = 1, updated_at = ?
		WHERE id = ?
	`, content, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteMessage marks a message deleted. Rows are never removed.
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_deleted = 1, updated_at = ?
		WHERE id = ?
	`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMessageRead adds the user to the message's read-by set.
// Marking twice is a no-op.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, messageID, userID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var readByJSON string
		err := tx.QueryRowContext(ctx,
			"SELECT read_by FROM messages WHERE id = ?", messageID).Scan(&readByJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("reading read_by: %w", err)
		}

		var readBy []int64
		if err := json.Unmarshal([]byte(readByJSON), &readBy); err != nil {
			return fmt.Errorf("unmarshaling read_by: %w", err)
		}
		if slices.Contains(readBy, userID) {
			return nil
		}

		readBy = append(readBy, userID)
		updated, err := json.Marshal(readBy)
		if err != nil {
			return fmt.Errorf("marshaling read_by: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE messages SET read_by = ? WHERE id = ?",
			string(updated), messageID); err != nil {
			return fmt.Errorf("updating read_by: %w", err)
		}
		return nil
	})
}

// lastMessage returns the newest non-deleted message of a conversation
// with its sender, or nil when the conversation is empty.
func (s *SQLiteStore) lastMessage(ctx context.Context, conversationID int64) (*MessageWithSender, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND is_deleted = 0
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID)

	m, err := scanMessage(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sender, err := s.GetUser(ctx, m.SenderID)
	if err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}
	return &MessageWithSender{Message: *m, Sender: sender}, nil
}

// scanMessage scans a message row
func scanMessage(sc scanner) (*Message, error) {
	var m Message
	var requiresAck, deleted, edited int
	var readByJSON, createdAt, updatedAt string

	err := sc.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Type, &m.Classification,
		&m.Priority, &requiresAck, &m.ContentHash, &deleted, &edited, &readByJSON,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	m.RequiresAck = requiresAck != 0
	m.IsDeleted = deleted != 0
	m.IsEdited = edited != 0
	if err := json.Unmarshal([]byte(readByJSON), &m.ReadBy); err != nil {
		return nil, fmt.Errorf("unmarshaling read_by: %w", err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
