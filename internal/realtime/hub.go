// ABOUTME: Connection registry and fan-out engine for live events
// ABOUTME: Mutex-guarded user-to-connection map with per-recipient failure isolation

package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Outbound event types
const (
	EventNewMessage     = "new_message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
	EventTyping         = "typing"
	EventAuthSuccess    = "auth_success"
	EventAuthError      = "auth_error"
)

// Event is a tagged payload pushed to live connections.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Scope selects which connections a conversation event fans out to.
type Scope string

const (
	// ScopeGlobal delivers to every live connection. This mirrors the
	// original delivery policy and is the default.
	ScopeGlobal Scope = "global"

	// ScopeConversation delivers only to conversation participants.
	ScopeConversation Scope = "conversation"
)

// Link is a live transport handle held by the registry. *Conn implements
// it; tests substitute fakes.
type Link interface {
	ID() string
	Send(payload []byte) error
	Shutdown(code int, reason string)
}

// PresenceStore flips the durable online flag as connections come and go
type PresenceStore interface {
	SetUserPresence(ctx context.Context, id int64, online bool) error
}

// MembershipStore resolves conversation participants for scoped fan-out
type MembershipStore interface {
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

// Hub owns the user-to-connection mapping. All access goes through its
// methods; the map is never handed out. State is process-lifetime only
// and rebuilt empty on restart.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]Link

	presence PresenceStore
	members  MembershipStore
	scope    Scope
	logger   *slog.Logger
}

// NewHub creates a hub with the given fan-out scope. Pass nil logger
// for default.
func NewHub(presence PresenceStore, members MembershipStore, scope Scope, logger *slog.Logger) *Hub {
	if scope == "" {
		scope = ScopeGlobal
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:    make(map[int64]Link),
		presence: presence,
		members:  members,
		scope:    scope,
		logger:   logger.With("component", "hub"),
	}
}

// Register maps a user to a live connection and marks them online.
// Last registration wins: an existing connection for the same user is
// closed and silently replaced.
func (h *Hub) Register(ctx context.Context, userID int64, link Link) {
	h.mu.Lock()
	old, hadOld := h.conns[userID]
	h.conns[userID] = link
	total := len(h.conns)
	h.mu.Unlock()

	if hadOld {
		old.Shutdown(websocket.ClosePolicyViolation, "superseded by new connection")
	}

	if err := h.presence.SetUserPresence(ctx, userID, true); err != nil {
		h.logger.Error("failed to mark user online", "user_id", userID, "error", err)
	}

	h.logger.Info("connection registered",
		"user_id", userID,
		"conn_id", link.ID(),
		"total_connections", total,
	)
}

// Unregister removes a user's connection and marks them offline.
// The connID guard keeps a stale close (from a superseded connection)
// from tearing down its replacement.
func (h *Hub) Unregister(ctx context.Context, userID int64, connID string) {
	h.mu.Lock()
	current, ok := h.conns[userID]
	if !ok || current.ID() != connID {
		h.mu.Unlock()
		return
	}
	delete(h.conns, userID)
	total := len(h.conns)
	h.mu.Unlock()

	if err := h.presence.SetUserPresence(ctx, userID, false); err != nil {
		h.logger.Error("failed to mark user offline", "user_id", userID, "error", err)
	}

	h.logger.Info("connection unregistered",
		"user_id", userID,
		"conn_id", connID,
		"total_connections", total,
	)
}

// Lookup returns the live connection for a user, if any.
func (h *Hub) Lookup(userID int64) (Link, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	link, ok := h.conns[userID]
	return link, ok
}

// Online reports whether the user has a live connection.
func (h *Hub) Online(userID int64) bool {
	_, ok := h.Lookup(userID)
	return ok
}

// Broadcast delivers an event for a conversation to live connections,
// excluding excludeUserID (0 excludes nobody). Under ScopeGlobal every
// connection is a target; under ScopeConversation only participants
// are. Delivery is fire-and-forget: a failed or missing recipient is
// logged and skipped, never failing the caller or the other recipients.
func (h *Hub) Broadcast(ctx context.Context, ev Event, conversationID, excludeUserID int64) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.Type, "error", err)
		return
	}

	targets := h.targets(ctx, conversationID, excludeUserID)
	for userID, link := range targets {
		if err := link.Send(payload); err != nil {
			h.logger.Warn("broadcast delivery failed",
				"user_id", userID,
				"conn_id", link.ID(),
				"type", ev.Type,
				"error", err,
			)
		}
	}
}

// targets snapshots recipient links under the read lock so sends happen
// without holding it.
func (h *Hub) targets(ctx context.Context, conversationID, excludeUserID int64) map[int64]Link {
	var allowed map[int64]bool
	if h.scope == ScopeConversation && conversationID != 0 {
		ids, err := h.members.ListParticipantIDs(ctx, conversationID)
		if err != nil {
			h.logger.Error("failed to resolve participants, skipping broadcast",
				"conversation_id", conversationID, "error", err)
			return nil
		}
		allowed = make(map[int64]bool, len(ids))
		for _, id := range ids {
			allowed[id] = true
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[int64]Link, len(h.conns))
	for userID, link := range h.conns {
		if userID == excludeUserID {
			continue
		}
		if allowed != nil && !allowed[userID] {
			continue
		}
		targets[userID] = link
	}
	return targets
}

// SendTo delivers an event to a single user's connection, if online.
func (h *Hub) SendTo(userID int64, ev Event) error {
	link, ok := h.Lookup(userID)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return link.Send(payload)
}

// Close shuts down all connections, e.g. at server stop.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, link := range h.conns {
		link.Shutdown(websocket.CloseGoingAway, "server shutting down")
		delete(h.conns, userID)
	}
	h.logger.Debug("hub closed")
}
