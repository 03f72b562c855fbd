// Package store provides persistent storage for parley using SQLite.
//
// # Architecture
//
// A single Store interface covers all persistence; SQLiteStore
// (modernc.org/sqlite, pure Go) implements it. The schema is created
// automatically on open and WAL mode is enabled for concurrent reads.
//
// # Data Models
//
// Core models:
//
//   - User: Account with role (member, admin, compliance_officer, auditor)
//     and a durable is_online presence flag
//   - Conversation / Participant: Direct or group chats and their members
//   - Message: Content with sha256 content hash, classification, priority
//     and soft-delete flag
//   - File: Attachment metadata tied to a message
//
// Compliance models:
//
//   - MessageAcknowledgment: At most one per (message, user), enforced by
//     a unique index
//   - AuditEntry: Immutable trail of compliance-relevant mutations
//   - AccessLog: Who touched which resource, from where
//   - RetentionPolicy / ComplianceReport: Governance records
//
// # Transactional Coupling
//
// Mutations that the audit trail must witness (message create,
// acknowledgment, policy create, report create) write the domain row,
// its audit entry and any access log inside one transaction, so a
// failed write leaves no partial trail.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateUsername: Username already taken
//   - ErrDuplicateAck: Message already acknowledged by this user
//
// All methods accept context.Context for cancellation support.
//
// # Presence
//
// The is_online flag mirrors the in-memory connection registry, so
// NewSQLiteStore resets every flag to offline at open.
package store
