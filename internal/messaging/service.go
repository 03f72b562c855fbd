// ABOUTME: Message creation pipeline coupling persistence, compliance records and fan-out
// ABOUTME: Every send writes the message, its audit entry and access log in one transaction

package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parley-chat/parley/internal/realtime"
	"github.com/parley-chat/parley/internal/store"
)

// ErrEmptyContent is returned when a message has no content
var ErrEmptyContent = errors.New("message content is empty")

// ErrContentTooLong is returned when a message exceeds the content limit
var ErrContentTooLong = errors.New("message content exceeds the maximum length")

// ErrNotParticipant is returned when a user acts on a conversation they
// are not a member of
var ErrNotParticipant = errors.New("user is not a conversation participant")

// ErrNotSender is returned when a user edits or deletes someone else's message
var ErrNotSender = errors.New("user is not the message sender")

const (
	maxContentLength = 16384

	// Fallback attachment size cap when the config leaves it unset
	defaultMaxFileSize = 10 << 20
)

// Broadcaster fans an event out to live connections. *realtime.Hub
// implements it; tests substitute fakes.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev realtime.Event, conversationID, excludeUserID int64)
}

// RequestMeta carries the client origin recorded on compliance records.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service implements the messaging operations on top of the store and hub.
type Service struct {
	store       store.Store
	hub         Broadcaster
	maxFileSize int64
	logger      *slog.Logger
}

// NewService creates a messaging service. maxFileSize caps attachment
// sizes; zero selects the default. Pass nil logger for default.
func NewService(st store.Store, hub Broadcaster, maxFileSize int64, logger *slog.Logger) *Service {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       st,
		hub:         hub,
		maxFileSize: maxFileSize,
		logger:      logger.With("component", "messaging"),
	}
}

// CreateMessageInput is the caller-supplied portion of a new message.
type CreateMessageInput struct {
	ConversationID int64
	Content        string
	Type           string
	Classification string
	Priority       string
	RequiresAck    bool
}

// CreateMessage validates, persists and fans out a new message. The
// message row, its audit entry and its access log commit atomically;
// broadcast happens only after commit and never fails the call.
func (s *Service) CreateMessage(ctx context.Context, sender *store.User, in CreateMessageInput, meta RequestMeta) (*store.MessageWithSender, error) {
	if in.Content == "" {
		return nil, ErrEmptyContent
	}
	if len(in.Content) > maxContentLength {
		return nil, ErrContentTooLong
	}

	if _, err := s.store.GetConversation(ctx, in.ConversationID); err != nil {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}
	if err := s.requireParticipant(ctx, in.ConversationID, sender.ID); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ConversationID: in.ConversationID,
		SenderID:       sender.ID,
		Content:        in.Content,
		Type:           in.Type,
		Classification: in.Classification,
		Priority:       in.Priority,
		RequiresAck:    in.RequiresAck,
		ContentHash:    hashContent(in.Content),
	}

	audit := &store.AuditEntry{
		EventType:    store.EventMessageSent,
		UserID:       sender.ID,
		ResourceType: store.ResourceMessage,
		NewValues: map[string]any{
			"conversationId": in.ConversationID,
			"classification": msg.Classification,
			"requiresAck":    msg.RequiresAck,
			"contentHash":    msg.ContentHash,
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	access := &store.AccessLog{
		UserID:       sender.ID,
		Action:       store.ActionCreate,
		ResourceType: store.ResourceMessage,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}

	if err := s.store.CreateMessage(ctx, msg, audit, access); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	full, err := s.store.GetMessageWithSender(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("loading created message: %w", err)
	}

	s.hub.Broadcast(ctx, realtime.Event{
		Type: realtime.EventNewMessage,
		Data: NewMessageView(full),
	}, msg.ConversationID, sender.ID)

	s.logger.Info("message created",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender_id", sender.ID,
		"classification", msg.Classification,
	)
	return full, nil
}

// UpdateMessage replaces a message's content. Only the original sender
// may edit, and conversation and sender bindings never change.
func (s *Service) UpdateMessage(ctx context.Context, user *store.User, messageID int64, content string) (*store.MessageWithSender, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > maxContentLength {
		return nil, ErrContentTooLong
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != user.ID {
		return nil, ErrNotSender
	}

	if err := s.store.UpdateMessageContent(ctx, messageID, content); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	full, err := s.store.GetMessageWithSender(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.hub.Broadcast(ctx, realtime.Event{
		Type: realtime.EventMessageUpdated,
		Data: NewMessageView(full),
	}, msg.ConversationID, user.ID)
	return full, nil
}

// DeleteMessage soft-deletes a message. The row is retained for the
// compliance trail; only its visibility changes.
func (s *Service) DeleteMessage(ctx context.Context, user *store.User, messageID int64) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != user.ID && user.Role != store.RoleAdmin {
		return ErrNotSender
	}

	if err := s.store.SoftDeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	s.hub.Broadcast(ctx, realtime.Event{
		Type: realtime.EventMessageDeleted,
		Data: map[string]any{"id": messageID, "conversationId": msg.ConversationID},
	}, msg.ConversationID, user.ID)
	return nil
}

// ListMessages returns a conversation's messages oldest-first, gated on
// the caller's membership.
func (s *Service) ListMessages(ctx context.Context, user *store.User, conversationID int64, limit int) ([]*store.MessageWithSender, error) {
	if err := s.requireParticipant(ctx, conversationID, user.ID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, limit)
}

// MarkRead records that the user has read the message. Idempotent.
func (s *Service) MarkRead(ctx context.Context, user *store.User, messageID int64) error {
	return s.store.MarkMessageRead(ctx, messageID, user.ID)
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("checking membership: %w", err)
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
