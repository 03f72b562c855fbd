// ABOUTME: Tests for acknowledgment store operations
// ABOUTME: Covers the duplicate-acknowledgment invariant and transactional compliance records

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAcknowledgment(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	alice, conv := setupConversation(t, store)
	bob := createTestUser(t, store, "bob", RoleMember)

	msg := &Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "ack me", RequiresAck: true}
	require.NoError(t, store.CreateMessage(ctx, msg, nil, nil))

	ack := &MessageAcknowledgment{
		MessageID: msg.ID,
		UserID:    bob.ID,
		IPAddress: "10.0.0.2",
		UserAgent: "test-agent",
	}
	audit := &AuditEntry{
		EventType:    EventMessageAcknowledged,
		UserID:       bob.ID,
		ResourceType: ResourceMessage,
	}
	access := &AccessLog{
		UserID:       bob.ID,
		Action:       ActionAcknowledge,
		ResourceType: ResourceMessage,
	}

	require.NoError(t, store.CreateAcknowledgment(ctx, ack, audit, access))
	assert.NotZero(t, ack.ID)
	assert.False(t, ack.AcknowledgedAt.IsZero())
	assert.Equal(t, msg.ID, audit.ResourceID)
	assert.Equal(t, msg.ID, access.ResourceID)

	acks, err := store.ListAcknowledgments(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, acks, 1)
	assert.Equal(t, bob.ID, acks[0].UserID)
	require.NotNil(t, acks[0].User)
	assert.Equal(t, "bob", acks[0].User.Username)
}

func TestStore_CreateAcknowledgment_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	alice, conv := setupConversation(t, store)
	bob := createTestUser(t, store, "bob", RoleMember)

	msg := &Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "ack me", RequiresAck: true}
	require.NoError(t, store.CreateMessage(ctx, msg, nil, nil))

	first := &MessageAcknowledgment{MessageID: msg.ID, UserID: bob.ID}
	firstAudit := &AuditEntry{EventType: EventMessageAcknowledged, UserID: bob.ID, ResourceType: ResourceMessage}
	require.NoError(t, store.CreateAcknowledgment(ctx, first, firstAudit, nil))

	second := &MessageAcknowledgment{MessageID: msg.ID, UserID: bob.ID}
	secondAudit := &AuditEntry{EventType: EventMessageAcknowledged, UserID: bob.ID, ResourceType: ResourceMessage}
	err := store.CreateAcknowledgment(ctx, second, secondAudit, nil)
	assert.ErrorIs(t, err, ErrDuplicateAck)

	// Exactly one stored acknowledgment and one audit entry remain
	acks, err := store.ListAcknowledgments(ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, acks, 1)

	eventType := EventMessageAcknowledged
	entries, err := store.ListAuditTrail(ctx, AuditFilter{EventType: &eventType})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_CreateAcknowledgment_DifferentUsers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	alice, conv := setupConversation(t, store)
	bob := createTestUser(t, store, "bob", RoleMember)
	carol := createTestUser(t, store, "carol", RoleMember)

	msg := &Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "ack me", RequiresAck: true}
	require.NoError(t, store.CreateMessage(ctx, msg, nil, nil))

	require.NoError(t, store.CreateAcknowledgment(ctx,
		&MessageAcknowledgment{MessageID: msg.ID, UserID: bob.ID}, nil, nil))
	require.NoError(t, store.CreateAcknowledgment(ctx,
		&MessageAcknowledgment{MessageID: msg.ID, UserID: carol.ID}, nil, nil))

	acks, err := store.ListAcknowledgments(ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, acks, 2)
}
