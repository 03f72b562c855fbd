// ABOUTME: WebSocket endpoint: upgrade, first-frame token auth and inbound frame dispatch
// ABOUTME: Authenticated connections join the hub; typing indicators relay through it

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/messaging"
	"github.com/parley-chat/parley/internal/realtime"
	"github.com/parley-chat/parley/internal/store"
)

// authDeadline bounds how long an unauthenticated socket may linger.
const authDeadline = 10 * time.Second

var errAuthRequired = errors.New("auth frame required")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The bearer token in the auth frame is the trust anchor, not the origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is a client-to-server WebSocket message.
type inboundFrame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID int64  `json:"conversationId,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

// handleWebSocket upgrades the connection and waits for an auth frame.
// The socket carries no identity until the token verifies; anything
// other than a valid auth frame first closes it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	user, err := s.authenticateSocket(r.Context(), ws)
	if err != nil {
		payload, _ := json.Marshal(realtime.Event{
			Type: realtime.EventAuthError,
			Data: map[string]string{"message": "authentication failed"},
		})
		_ = ws.WriteMessage(websocket.TextMessage, payload)
		_ = ws.Close()
		return
	}
	_ = ws.SetReadDeadline(time.Time{})

	conn := realtime.NewConn(user.ID, ws)
	conn.Start()
	s.hub.Register(r.Context(), user.ID, conn)

	if err := s.hub.SendTo(user.ID, realtime.Event{
		Type: realtime.EventAuthSuccess,
		Data: map[string]any{"user": messaging.NewUserView(user)},
	}); err != nil {
		s.logger.Warn("failed to confirm authentication", "user_id", user.ID, "error", err)
	}

	// Read loop runs on the handler goroutine until the client goes away
	s.readLoop(user.ID, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Unregister(ctx, user.ID, conn.ID())
	conn.Shutdown(websocket.CloseNormalClosure, "")
}

// authenticateSocket reads the first frame and verifies its token.
func (s *Server) authenticateSocket(ctx context.Context, ws *websocket.Conn) (*store.User, error) {
	_ = ws.SetReadDeadline(time.Now().Add(authDeadline))

	var frame inboundFrame
	if err := ws.ReadJSON(&frame); err != nil {
		return nil, err
	}
	if frame.Type != "auth" || frame.Token == "" {
		return nil, errAuthRequired
	}

	userID, err := s.verifier.Verify(frame.Token)
	if err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Server) readLoop(userID int64, conn *realtime.Conn) {
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "typing":
			if frame.ConversationID <= 0 {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.hub.Broadcast(ctx, realtime.Event{
				Type: realtime.EventTyping,
				Data: map[string]any{
					"conversationId": frame.ConversationID,
					"userId":         userID,
					"isTyping":       frame.IsTyping,
				},
			}, frame.ConversationID, userID)
			cancel()
		default:
			s.logger.Debug("ignoring unknown frame", "type", frame.Type, "user_id", userID)
		}
	}
}
