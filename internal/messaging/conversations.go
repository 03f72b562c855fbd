// ABOUTME: Conversation operations: creation, membership-gated reads and participant management
// ABOUTME: Conversation type is derived from the participant count, never supplied by clients

package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/parley-chat/parley/internal/store"
)

// ErrNoParticipants is returned when creating a conversation with an empty member list
var ErrNoParticipants = errors.New("conversation needs at least one other participant")

// CreateConversationInput is the caller-supplied portion of a new conversation.
type CreateConversationInput struct {
	Name           string
	ParticipantIDs []int64 // other members; the creator is added implicitly
	IsEncrypted    bool
}

// CreateConversation creates a conversation with the creator as its
// first participant. Two total participants make it direct, more make
// it a group.
func (s *Service) CreateConversation(ctx context.Context, creator *store.User, in CreateConversationInput) (*store.ConversationSummary, error) {
	members := dedupeParticipants(creator.ID, in.ParticipantIDs)
	if len(members) < 2 {
		return nil, ErrNoParticipants
	}

	for _, id := range members[1:] {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			return nil, fmt.Errorf("looking up participant %d: %w", id, err)
		}
	}

	convType := store.ConversationGroup
	if len(members) == 2 {
		convType = store.ConversationDirect
	}

	conv := &store.Conversation{
		Name:        in.Name,
		Type:        convType,
		IsEncrypted: in.IsEncrypted,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	for _, id := range members {
		if err := s.store.AddParticipant(ctx, conv.ID, id, "member"); err != nil {
			return nil, fmt.Errorf("adding participant %d: %w", id, err)
		}
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"type", conv.Type,
		"participants", len(members),
	)
	return s.store.GetConversationWithParticipants(ctx, conv.ID)
}

// GetConversation returns a conversation with participants, gated on
// the caller's membership.
func (s *Service) GetConversation(ctx context.Context, user *store.User, id int64) (*store.ConversationSummary, error) {
	if err := s.requireParticipant(ctx, id, user.ID); err != nil {
		return nil, err
	}
	return s.store.GetConversationWithParticipants(ctx, id)
}

// ListConversations returns the caller's conversations, most recently
// active first.
func (s *Service) ListConversations(ctx context.Context, user *store.User) ([]*store.ConversationSummary, error) {
	return s.store.ListUserConversations(ctx, user.ID)
}

// AddParticipant adds a user to a conversation. Only existing
// participants may add members.
func (s *Service) AddParticipant(ctx context.Context, actor *store.User, conversationID, userID int64) error {
	if err := s.requireParticipant(ctx, conversationID, actor.ID); err != nil {
		return err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	return s.store.AddParticipant(ctx, conversationID, userID, "member")
}

// dedupeParticipants builds the member list with the creator first and
// duplicates removed.
func dedupeParticipants(creatorID int64, others []int64) []int64 {
	seen := map[int64]bool{creatorID: true}
	members := []int64{creatorID}
	for _, id := range others {
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	return members
}
