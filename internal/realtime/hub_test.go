// ABOUTME: Tests for the connection registry and broadcast fan-out
// ABOUTME: Uses fake links and stores to cover presence, replacement and delivery isolation

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLink records sends and shutdowns
type fakeLink struct {
	mu       sync.Mutex
	id       string
	sent     [][]byte
	sendErr  error
	shutdown bool
}

func newFakeLink(id string) *fakeLink {
	return &fakeLink{id: id}
}

func (f *fakeLink) ID() string { return f.id }

func (f *fakeLink) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeLink) Shutdown(code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
}

func (f *fakeLink) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeLink) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeLink) wasShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

// fakePresence tracks the durable online flag per user
type fakePresence struct {
	mu     sync.Mutex
	online map[int64]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[int64]bool)}
}

func (f *fakePresence) SetUserPresence(_ context.Context, id int64, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[id] = online
	return nil
}

func (f *fakePresence) isOnline(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[id]
}

// fakeMembership maps conversation id to participant ids
type fakeMembership struct {
	members map[int64][]int64
	err     error
}

func (f *fakeMembership) ListParticipantIDs(_ context.Context, conversationID int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.members[conversationID], nil
}

func setupHub(t *testing.T, scope Scope) (*Hub, *fakePresence, *fakeMembership) {
	t.Helper()
	presence := newFakePresence()
	membership := &fakeMembership{members: make(map[int64][]int64)}
	return NewHub(presence, membership, scope, nil), presence, membership
}

func TestHub_RegisterMarksOnline(t *testing.T) {
	hub, presence, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	hub.Register(ctx, 1, newFakeLink("c1"))

	assert.True(t, hub.Online(1))
	assert.True(t, presence.isOnline(1))
}

func TestHub_UnregisterMarksOffline(t *testing.T) {
	hub, presence, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	hub.Register(ctx, 1, newFakeLink("c1"))
	hub.Unregister(ctx, 1, "c1")

	assert.False(t, hub.Online(1))
	assert.False(t, presence.isOnline(1))
}

func TestHub_LastRegistrationWins(t *testing.T) {
	hub, presence, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	first := newFakeLink("c1")
	second := newFakeLink("c2")

	hub.Register(ctx, 1, first)
	hub.Register(ctx, 1, second)

	assert.True(t, first.wasShutdown(), "replaced connection must be closed")
	assert.False(t, second.wasShutdown())

	link, ok := hub.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "c2", link.ID())
	assert.True(t, presence.isOnline(1))
}

func TestHub_StaleUnregisterIgnored(t *testing.T) {
	hub, presence, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	hub.Register(ctx, 1, newFakeLink("c1"))
	hub.Register(ctx, 1, newFakeLink("c2"))

	// The superseded connection's close fires after the replacement
	// registered; it must not take the user offline.
	hub.Unregister(ctx, 1, "c1")

	assert.True(t, hub.Online(1))
	assert.True(t, presence.isOnline(1))

	hub.Unregister(ctx, 1, "c2")
	assert.False(t, hub.Online(1))
}

func TestHub_BroadcastGlobal(t *testing.T) {
	hub, _, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	alice := newFakeLink("a")
	bob := newFakeLink("b")
	carol := newFakeLink("c")
	hub.Register(ctx, 1, alice)
	hub.Register(ctx, 2, bob)
	hub.Register(ctx, 3, carol)

	hub.Broadcast(ctx, Event{Type: EventNewMessage, Data: map[string]any{"id": 7}}, 10, 1)

	assert.Equal(t, 0, alice.sentCount(), "sender is excluded")
	assert.Equal(t, 1, bob.sentCount())
	assert.Equal(t, 1, carol.sentCount())

	var ev Event
	require.NoError(t, json.Unmarshal(bob.lastSent(), &ev))
	assert.Equal(t, EventNewMessage, ev.Type)
}

func TestHub_BroadcastConversationScoped(t *testing.T) {
	hub, _, membership := setupHub(t, ScopeConversation)
	ctx := context.Background()
	membership.members[10] = []int64{1, 2}

	alice := newFakeLink("a")
	bob := newFakeLink("b")
	outsider := newFakeLink("c")
	hub.Register(ctx, 1, alice)
	hub.Register(ctx, 2, bob)
	hub.Register(ctx, 3, outsider)

	hub.Broadcast(ctx, Event{Type: EventNewMessage}, 10, 1)

	assert.Equal(t, 0, alice.sentCount())
	assert.Equal(t, 1, bob.sentCount())
	assert.Equal(t, 0, outsider.sentCount(), "non-participants receive nothing")
}

func TestHub_BroadcastIsolatesFailedRecipient(t *testing.T) {
	hub, _, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	broken := newFakeLink("broken")
	broken.sendErr = errors.New("write: broken pipe")
	healthy := newFakeLink("healthy")
	hub.Register(ctx, 1, broken)
	hub.Register(ctx, 2, healthy)

	hub.Broadcast(ctx, Event{Type: EventNewMessage}, 0, 0)

	assert.Equal(t, 1, healthy.sentCount(), "one failed recipient must not block the rest")
}

func TestHub_BroadcastMembershipErrorSkips(t *testing.T) {
	hub, _, membership := setupHub(t, ScopeConversation)
	ctx := context.Background()
	membership.err = errors.New("db gone")

	bob := newFakeLink("b")
	hub.Register(ctx, 2, bob)

	hub.Broadcast(ctx, Event{Type: EventNewMessage}, 10, 0)

	assert.Equal(t, 0, bob.sentCount())
}

func TestHub_SendTo(t *testing.T) {
	hub, _, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	bob := newFakeLink("b")
	hub.Register(ctx, 2, bob)

	require.NoError(t, hub.SendTo(2, Event{Type: EventTyping}))
	assert.Equal(t, 1, bob.sentCount())

	// Offline recipient is a no-op, not an error
	require.NoError(t, hub.SendTo(99, Event{Type: EventTyping}))
}

func TestHub_Close(t *testing.T) {
	hub, _, _ := setupHub(t, ScopeGlobal)
	ctx := context.Background()

	a := newFakeLink("a")
	b := newFakeLink("b")
	hub.Register(ctx, 1, a)
	hub.Register(ctx, 2, b)

	hub.Close()

	assert.True(t, a.wasShutdown())
	assert.True(t, b.wasShutdown())
	assert.False(t, hub.Online(1))
	assert.False(t, hub.Online(2))
}
