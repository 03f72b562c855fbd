// ABOUTME: JSON view types for messages, users and conversations
// ABOUTME: Shared by the HTTP handlers and the live event payloads

package messaging

import (
	"time"

	"github.com/parley-chat/parley/internal/store"
)

// UserView is the client-facing representation of a user. The password
// hash never leaves the store layer.
type UserView struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Role     store.Role `json:"role"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// MessageView is the client-facing representation of a message.
type MessageView struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	Classification string    `json:"classification"`
	Priority       string    `json:"priority"`
	RequiresAck    bool      `json:"requiresAck"`
	ContentHash    string    `json:"contentHash"`
	IsDeleted      bool      `json:"isDeleted"`
	IsEdited       bool      `json:"isEdited"`
	ReadBy         []int64   `json:"readBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Sender         *UserView `json:"sender,omitempty"`
}

// ParticipantView is a conversation member with their user attached.
type ParticipantView struct {
	UserID   int64     `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	User     *UserView `json:"user,omitempty"`
}

// ConversationView is the client-facing representation of a conversation.
type ConversationView struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Type         string             `json:"type"`
	IsEncrypted  bool               `json:"isEncrypted"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Participants []*ParticipantView `json:"participants,omitempty"`
	LastMessage  *MessageView       `json:"lastMessage,omitempty"`
}

// FileView is the client-facing representation of attached file metadata.
type FileView struct {
	ID           int64     `json:"id"`
	MessageID    int64     `json:"messageId"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUserView converts a store user. Returns nil for nil input.
func NewUserView(u *store.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

// NewMessageView converts a message with its sender attached.
func NewMessageView(m *store.MessageWithSender) *MessageView {
	if m == nil {
		return nil
	}
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []int64{}
	}
	return &MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           m.Type,
		Classification: m.Classification,
		Priority:       m.Priority,
		RequiresAck:    m.RequiresAck,
		ContentHash:    m.ContentHash,
		IsDeleted:      m.IsDeleted,
		IsEdited:       m.IsEdited,
		ReadBy:         readBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Sender:         NewUserView(m.Sender),
	}
}

// NewMessageViews converts a slice of messages.
func NewMessageViews(msgs []*store.MessageWithSender) []*MessageView {
	views := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, NewMessageView(m))
	}
	return views
}

// NewConversationView converts a conversation summary.
func NewConversationView(c *store.ConversationSummary) *ConversationView {
	if c == nil {
		return nil
	}
	participants := make([]*ParticipantView, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, &ParticipantView{
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: p.JoinedAt,
			User:     NewUserView(p.User),
		})
	}
	return &ConversationView{
		ID:           c.ID,
		Name:         c.Name,
		Type:         c.Type,
		IsEncrypted:  c.IsEncrypted,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Participants: participants,
		LastMessage:  NewMessageView(c.LastMessage),
	}
}

// NewConversationViews converts a slice of conversation summaries.
func NewConversationViews(convs []*store.ConversationSummary) []*ConversationView {
	views := make([]*ConversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, NewConversationView(c))
	}
	return views
}

// NewFileView converts file metadata.
func NewFileView(f *store.File) *FileView {
	if f == nil {
		return nil
	}
	return &FileView{
		ID:           f.ID,
		MessageID:    f.MessageID,
		Filename:     f.Filename,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedAt:    f.CreatedAt,
	}
}
