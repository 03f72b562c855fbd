// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines users, conversations, messages and the compliance trail entities

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when registering a username that is taken
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateAck is returned when a user acknowledges the same message twice
var ErrDuplicateAck = errors.New("message already acknowledged")

// Role is a user's service-wide role
type Role string

const (
	RoleMember            Role = "member"
	RoleAdmin             Role = "admin"
	RoleComplianceOfficer Role = "compliance_officer"
	RoleAuditor           Role = "auditor"
)

// ValidRoles lists all assignable roles.
var ValidRoles = []Role{RoleMember, RoleAdmin, RoleComplianceOfficer, RoleAuditor}

// CanReadCompliance reports whether the role may read audit trails,
// access logs and compliance reports.
func (r Role) CanReadCompliance() bool {
	return r == RoleAdmin || r == RoleComplianceOfficer || r == RoleAuditor
}

// CanManageCompliance reports whether the role may create retention
// policies and generate compliance reports.
func (r Role) CanManageCompliance() bool {
	return r == RoleAdmin || r == RoleComplianceOfficer
}

// User represents a registered account. Users are never hard-deleted.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	IsOnline     bool
	LastSeen     *time.Time
	CreatedAt    time.Time
}

// ConversationType constants
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Conversation groups messages between a set of participants.
// UpdatedAt is bumped on every new message and drives listing order.
type Conversation struct {
	ID                int64
	Name              string
	Type              string // "direct" or "group"
	IsEncrypted       bool
	RetentionPolicyID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Participant is a user's membership in a conversation
type Participant struct {
	ConversationID int64
	UserID         int64
	Role           string // role within the conversation, "member" by default
	JoinedAt       time.Time
}

// ParticipantWithUser is a participant with its user row attached
type ParticipantWithUser struct {
	Participant
	User *User
}

// ConversationSummary is a conversation with participants and the most
// recent message, as returned by ListUserConversations.
type ConversationSummary struct {
	Conversation
	Participants []*ParticipantWithUser
	LastMessage  *MessageWithSender // nil when the conversation is empty
}

// Classification constants for message compliance classification
const (
	ClassificationGeneral            = "general"
	ClassificationPolicyNotification = "policy_notification"
)

// Message is a single message in a conversation.
// ConversationID and SenderID are immutable once created; the only
// permitted mutations are content edits and soft deletion.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	Type           string // "text" unless stated otherwise
	Classification string
	Priority       string
	RequiresAck    bool
	ContentHash    string // hex sha256 over the content bytes
	IsDeleted      bool
	IsEdited       bool
	ReadBy         []int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MessageWithSender is the denormalized view handed to clients
type MessageWithSender struct {
	Message
	Sender *User
}

// File records metadata for a binary attached to a message.
// The binary itself lives outside the store.
type File struct {
	ID           int64
	MessageID    int64
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	EncryptedKey *string
	CreatedAt    time.Time
}

// MessageAcknowledgment records a per-user receipt confirmation.
// At most one acknowledgment exists per (message, user) pair.
type MessageAcknowledgment struct {
	ID             int64
	MessageID      int64
	UserID         int64
	AcknowledgedAt time.Time
	IPAddress      string
	UserAgent      string
}

// AckWithUser is an acknowledgment with its user row attached
type AckWithUser struct {
	MessageAcknowledgment
	User *User
}

// RetentionPolicy governs how long a class of messages is preserved
type RetentionPolicy struct {
	ID            int64
	Name          string
	Description   string
	RetentionDays int
	IsActive      bool
	CreatedBy     int64
	CreatedAt     time.Time
}

// RetentionPolicyUpdate carries a partial policy update; nil fields are untouched
type RetentionPolicyUpdate struct {
	Name          *string
	Description   *string
	RetentionDays *int
	IsActive      *bool
}

// AccessAction represents an access-log action
type AccessAction string

const (
	ActionCreate      AccessAction = "create"
	ActionRead        AccessAction = "read"
	ActionUpdate      AccessAction = "update"
	ActionDelete      AccessAction = "delete"
	ActionAcknowledge AccessAction = "acknowledge"
)

// ResourceType tags which entity a compliance record points at
type ResourceType string

const (
	ResourceUser            ResourceType = "user"
	ResourceConversation    ResourceType = "conversation"
	ResourceMessage         ResourceType = "message"
	ResourceRetentionPolicy ResourceType = "retention_policy"
	ResourceReport          ResourceType = "compliance_report"
)

// AccessLog records who acted on a resource and from where. Append-only.
type AccessLog struct {
	ID           int64
	UserID       int64
	Action       AccessAction
	ResourceType ResourceType
	ResourceID   int64
	IPAddress    string
	UserAgent    string
	Timestamp    time.Time
}

// AccessLogWithUser is an access log entry with its user row attached
type AccessLogWithUser struct {
	AccessLog
	User *User
}

// AuditEntry is the canonical compliance record for a state change.
// Append-only; OldValues/NewValues are optional snapshots.
type AuditEntry struct {
	ID           int64
	EventType    string // e.g. "message_sent", "message_acknowledged"
	UserID       int64
	ResourceType ResourceType
	ResourceID   int64
	OldValues    map[string]any
	NewValues    map[string]any
	IPAddress    string
	UserAgent    string
	Timestamp    time.Time
}

// AuditFilter specifies filtering options for listing audit entries
type AuditFilter struct {
	UserID       *int64
	ResourceType *ResourceType
	EventType    *string
	Since        *time.Time
	Until        *time.Time
	Limit        int // default 100, max 1000
}

// AuditEntryWithUser is an audit entry with its user row attached
type AuditEntryWithUser struct {
	AuditEntry
	User *User
}

// ComplianceReport is a generated report. Append-only once generated.
type ComplianceReport struct {
	ID          int64
	ReportType  string
	Title       string
	Description string
	GeneratedBy int64
	Data        map[string]any
	GeneratedAt time.Time
}

// ReportWithGenerator is a report with the generating user attached
type ReportWithGenerator struct {
	ComplianceReport
	Generator *User
}

// Store defines the persistence gateway. Implementations must serialize
// conflicting writes themselves; callers issue no explicit locking.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	SetUserPresence(ctx context.Context, id int64, online bool) error

	// Conversations
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetConversationWithParticipants(ctx context.Context, id int64) (*ConversationSummary, error)
	ListUserConversations(ctx context.Context, userID int64) ([]*ConversationSummary, error)
	AddParticipant(ctx context.Context, conversationID, userID int64, role string) error
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)

	// Messages. CreateMessage persists the message, bumps the owning
	// conversation's UpdatedAt and appends the audit entry and access log
	// in a single transaction.
	CreateMessage(ctx context.Context, m *Message, audit *AuditEntry, access *AccessLog) error
	GetMessage(ctx context.Context, id int64) (*Message, error)
	GetMessageWithSender(ctx context.Context, id int64) (*MessageWithSender, error)
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]*MessageWithSender, error)
	UpdateMessageContent(ctx context.Context, id int64, content string) error
	SoftDeleteMessage(ctx context.Context, id int64) error
	MarkMessageRead(ctx context.Context, messageID, userID int64) error

	// File metadata
	CreateFile(ctx context.Context, f *File) error
	ListMessageFiles(ctx context.Context, messageID int64) ([]*File, error)

	// Acknowledgments. CreateAcknowledgment is transactional with its
	// audit entry and access log, and fails with ErrDuplicateAck on a
	// second acknowledgment for the same (message, user) pair.
	CreateAcknowledgment(ctx context.Context, a *MessageAcknowledgment, audit *AuditEntry, access *AccessLog) error
	ListAcknowledgments(ctx context.Context, messageID int64) ([]*AckWithUser, error)

	// Retention policies
	CreateRetentionPolicy(ctx context.Context, p *RetentionPolicy, audit *AuditEntry) error
	ListRetentionPolicies(ctx context.Context) ([]*RetentionPolicy, error)
	UpdateRetentionPolicy(ctx context.Context, id int64, upd RetentionPolicyUpdate) error

	// Access logs
	AppendAccessLog(ctx context.Context, l *AccessLog) error
	ListAccessLogs(ctx context.Context, resourceType ResourceType, resourceID int64, limit int) ([]*AccessLogWithUser, error)

	// Audit trail
	AppendAuditEntry(ctx context.Context, e *AuditEntry) error
	ListAuditTrail(ctx context.Context, f AuditFilter) ([]*AuditEntryWithUser, error)

	// Compliance reports
	CreateComplianceReport(ctx context.Context, r *ComplianceReport, audit *AuditEntry) error
	ListComplianceReports(ctx context.Context, reportType string, limit int) ([]*ReportWithGenerator, error)

	// Close releases any resources held by the store
	Close() error
}
