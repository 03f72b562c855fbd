// Package messaging implements the message pipeline and conversation
// operations.
//
// # Message Pipeline
//
// CreateMessage runs validate → hash → persist → fan out. The sha256
// content hash is computed before the write; the message row, its
// audit entry and its access log commit in one transaction; the
// new_message event is broadcast only after commit, and a broadcast
// failure never fails the send.
//
// Edits are sender-only, deletes are sender-or-admin, and deletes are
// soft so the compliance trail keeps the row.
//
// # Conversations
//
// Conversations derive their type from the participant count (direct
// for exactly two, group otherwise) and every read is gated on
// membership: non-participants get ErrNotParticipant, which the HTTP
// layer maps to 403.
//
// # Attachments
//
// AttachFile records metadata only. Stored filenames are fresh UUIDs
// with the original extension, and sizes above the configured cap are
// rejected with ErrFileTooLarge.
package messaging
