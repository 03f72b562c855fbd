// ABOUTME: WebSocket connection wrapper coordinating outbound writes via a buffered channel
// ABOUTME: One write pump per connection keeps gorilla's single-writer requirement satisfied

package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 75 * time.Second

	// sendBufferSize is the outbound channel buffer per connection.
	sendBufferSize = 64
)

// ErrConnClosed is returned by Send after the connection shut down
var ErrConnClosed = errors.New("connection closed")

// Conn wraps a websocket and coordinates outbound writes via a buffered
// channel. Safe for concurrent use.
type Conn struct {
	id     string
	userID int64

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConn constructs a Conn for the given user.
func NewConn(userID int64, ws *websocket.Conn) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated user this connection belongs to.
func (c *Conn) UserID() int64 { return c.userID }

// Start launches the write pump and arms the pong-based read deadline.
// Call exactly once per connection.
func (c *Conn) Start() {
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.writeLoop()
}

// ReadJSON reads the next inbound frame into v. Callers own the read
// side; only one goroutine may read at a time.
func (c *Conn) ReadJSON(v any) error {
	return c.ws.ReadJSON(v)
}

// Send enqueues payload for delivery. If the client is slow and the
// buffer is full the connection is closed to keep backpressure bounded.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case c.send <- payload:
		return nil
	default:
		c.Shutdown(websocket.CloseGoingAway, "send buffer full")
		return errors.New("send buffer exceeded")
	}
}

// Shutdown terminates the connection and stops the write pump.
func (c *Conn) Shutdown(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *Conn) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
