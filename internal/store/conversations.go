// ABOUTME: Conversation and participant store methods
// ABOUTME: Listing order is driven solely by updated_at, bumped on each new message

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateConversation inserts a new conversation and fills in its ID.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.Type == "" {
		c.Type = ConversationDirect
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (name, type, is_encrypted, retention_policy_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		c.Name,
		c.Type,
		boolToInt(c.IsEncrypted),
		c.RetentionPolicyID,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading conversation id: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "type", c.Type)
	return nil
}

const conversationColumns = "id, name, type, is_encrypted, retention_policy_id, created_at, updated_at"

// GetConversation returns the conversation with the given ID or ErrNotFound.
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id)
	return scanConversation(row)
}

// GetConversationWithParticipants returns the conversation with its full
// participant list (users attached), or ErrNotFound.
func (s *SQLiteStore) GetConversationWithParticipants(ctx context.Context, id int64) (*ConversationSummary, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	participants, err := s.listParticipants(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ConversationSummary{
		Conversation: *conv,
		Participants: participants,
	}, nil
}

// ListUserConversations returns the conversations the user participates
// in, ordered by recency (updated_at, newest first), each with its
// participants and last message attached.
func (s *SQLiteStore) ListUserConversations(ctx context.Context, userID int64) ([]*ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.type, c.is_encrypted, c.retention_policy_id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*ConversationSummary
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &ConversationSummary{Conversation: *conv})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	for _, sum := range summaries {
		if sum.Participants, err = s.listParticipants(ctx, sum.ID); err != nil {
			return nil, err
		}
		last, err := s.lastMessage(ctx, sum.ID)
		if err != nil {
			return nil, err
		}
		sum.LastMessage = last
	}

	if summaries == nil {
		summaries = []*ConversationSummary{}
	}
	return summaries, nil
}

// AddParticipant adds a user to a conversation. Adding an existing
// participant is a no-op.
func (s *SQLiteStore) AddParticipant(ctx context.Context, conversationID, userID int64, role string) error {
	if role == "" {
		role = "member"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, conversationID, userID, role, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("adding participant: %w", err)
	}
	return nil
}

// IsParticipant reports whether the user belongs to the conversation.
func (s *SQLiteStore) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking participant: %w", err)
	}
	return true, nil
}

// ListParticipantIDs returns the user IDs of all participants.
func (s *SQLiteStore) ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ?
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying participant ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning participant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participant ids: %w", err)
	}
	return ids, nil
}

// listParticipants loads participants with their user rows.
func (s *SQLiteStore) listParticipants(ctx context.Context, conversationID int64) ([]*ParticipantWithUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.conversation_id, p.user_id, p.role, p.joined_at, `+prefixedUserColumns("u")+`
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = ?
		ORDER BY p.joined_at, p.user_id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var participants []*ParticipantWithUser
	for rows.Next() {
		var p ParticipantWithUser
		var joinedAt string
		var u User
		var online int
		var lastSeen *string
		var userCreatedAt string

		if err := rows.Scan(
			&p.ConversationID, &p.UserID, &p.Role, &joinedAt,
			&u.ID, &u.Username, &u.PasswordHash, &u.Role, &online, &lastSeen, &userCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}

		if p.JoinedAt, err = parseTime(joinedAt); err != nil {
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

		p.User = &u
		participants = append(participants, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}

	if participants == nil {
		participants = []*ParticipantWithUser{}
	}
	return participants, nil
}

// scanConversation scans a conversation row
func scanConversation(sc scanner) (*Conversation, error) {
	var c Conversation
	var encrypted int
	var createdAt, updatedAt string

	err := sc.Scan(&c.ID, &c.Name, &c.Type, &encrypted, &c.RetentionPolicyID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	c.IsEncrypted = encrypted != 0
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// prefixedUserColumns renders userColumns with a table alias prefix
func prefixedUserColumns(alias string) string {
	return alias + ".id, " + alias + ".username, " + alias + ".password_hash, " +
		alias + ".role, " + alias + ".is_online, " + alias + ".last_seen, " + alias + ".created_at"
}
