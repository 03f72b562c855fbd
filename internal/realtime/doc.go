// Package realtime maintains live WebSocket connections and event fan-out.
//
// # Hub
//
// The Hub maps user ids to live connections behind the Link interface.
// Registration is last-wins: a second connection for the same user
// supersedes and closes the first, and a connection-id guard keeps the
// superseded connection's teardown from knocking the replacement
// offline. The hub mirrors registrations into the durable presence
// flag via PresenceStore.
//
// # Broadcast
//
// Broadcast marshals an event once and delivers it to every live
// connection (scope "global") or to conversation participants only
// (scope "conversation", resolved through MembershipStore). A failed
// recipient is disconnected without affecting delivery to the rest.
//
// # Connections
//
// Conn wraps a gorilla/websocket connection with a buffered write pump,
// ping/pong keepalive and an idempotent shutdown. Send never blocks; a
// full buffer closes the connection instead of stalling the caller.
package realtime
