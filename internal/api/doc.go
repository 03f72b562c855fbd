// Package api provides the HTTP and WebSocket surface.
//
// # Routes
//
// net/http ServeMux with method patterns. Registration, login, /health
// and /ws are open; everything else sits behind the bearer-token
// middleware. See Server.Handler for the full route table.
//
// # Error Envelope
//
// Every error response is {"code","message"} with a stable machine
// code: unauthorized, forbidden, validation_failed, not_found,
// duplicate_acknowledgment or storage_failure. Domain sentinels map to
// 4xx codes; only unexpected errors surface as storage_failure (500).
//
// # WebSocket
//
// /ws upgrades without credentials; the first frame must be an auth
// frame carrying a bearer token, due within ten seconds. After
// auth_success the socket receives new_message, message_updated,
// message_deleted and typing events, and may send typing frames.
package api
