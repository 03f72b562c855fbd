// ABOUTME: Compliance operations: acknowledgments, retention policies, reports and trail reads
// ABOUTME: Role gating lives here; the store below enforces append-only and uniqueness

package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parley-chat/parley/internal/store"
)

// ErrForbidden is returned when the caller's role does not permit the operation
var ErrForbidden = errors.New("role does not permit this operation")

// ErrInvalidPolicy is returned when a retention policy fails validation
var ErrInvalidPolicy = errors.New("invalid retention policy")

// ErrInvalidReport is returned when a report request is missing its type or title
var ErrInvalidReport = errors.New("report type and title are required")

// RequestMeta carries the client origin recorded on compliance records.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Service implements the compliance operations.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// NewService creates a compliance service. Pass nil logger for default.
func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "compliance"),
	}
}

// LogAccess appends an access log entry for a read or similar action.
// Failures are logged, not returned: an access-log miss must not fail
// the operation it describes.
func (s *Service) LogAccess(ctx context.Context, user *store.User, action store.AccessAction, resourceType store.ResourceType, resourceID int64, meta RequestMeta) {
	err := s.store.AppendAccessLog(ctx, &store.AccessLog{
		UserID:       user.ID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	if err != nil {
		s.logger.Error("failed to append access log",
			"user_id", user.ID,
			"action", action,
			"resource", string(resourceType)+"/"+fmt.Sprint(resourceID),
			"error", err,
		)
	}
}

// Acknowledge records a user's receipt confirmation for a message.
// The acknowledgment, its audit entry and access log commit atomically;
// a second acknowledgment for the same message fails with
// store.ErrDuplicateAck and writes nothing.
func (s *Service) Acknowledge(ctx context.Context, user *store.User, messageID int64, meta RequestMeta) (*store.MessageAcknowledgment, error) {
	if _, err := s.store.GetMessage(ctx, messageID); err != nil {
		return nil, fmt.Errorf("looking up message: %w", err)
	}

	ack := &store.MessageAcknowledgment{
		MessageID: messageID,
		UserID:    user.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	audit := &store.AuditEntry{
		EventType:    store.EventMessageAcknowledged,
		UserID:       user.ID,
		ResourceType: store.ResourceMessage,
		ResourceID:   messageID,
		NewValues:    map[string]any{"messageId": messageID},
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	access := &store.AccessLog{
		UserID:       user.ID,
		Action:       store.ActionAcknowledge,
		ResourceType: store.ResourceMessage,
		ResourceID:   messageID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}

	if err := s.store.CreateAcknowledgment(ctx, ack, audit, access); err != nil {
		return nil, err
	}

	s.logger.Info("message acknowledged",
		"message_id", messageID,
		"user_id", user.ID,
	)
	return ack, nil
}

// ListAcknowledgments returns a message's acknowledgments with users.
func (s *Service) ListAcknowledgments(ctx context.Context, messageID int64) ([]*store.AckWithUser, error) {
	if _, err := s.store.GetMessage(ctx, messageID); err != nil {
		return nil, err
	}
	return s.store.ListAcknowledgments(ctx, messageID)
}

// CreatePolicyInput is the caller-supplied portion of a retention policy.
type CreatePolicyInput struct {
	Name          string
	Description   string
	RetentionDays int
}

// CreateRetentionPolicy creates an active retention policy together
// with its audit entry. Requires a compliance-manager role.
func (s *Service) CreateRetentionPolicy(ctx context.Context, user *store.User, in CreatePolicyInput, meta RequestMeta) (*store.RetentionPolicy, error) {
	if !user.Role.CanManageCompliance() {
		return nil, ErrForbidden
	}
	if in.Name == "" || in.RetentionDays <= 0 {
		return nil, ErrInvalidPolicy
	}

	p := &store.RetentionPolicy{
		Name:          in.Name,
		Description:   in.Description,
		RetentionDays: in.RetentionDays,
		IsActive:      true,
		CreatedBy:     user.ID,
	}
	audit := &store.AuditEntry{
		EventType:    store.EventRetentionPolicyCreated,
		UserID:       user.ID,
		ResourceType: store.ResourceRetentionPolicy,
		NewValues: map[string]any{
			"name":          in.Name,
			"retentionDays": in.RetentionDays,
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.store.CreateRetentionPolicy(ctx, p, audit); err != nil {
		return nil, fmt.Errorf("creating retention policy: %w", err)
	}

	s.logger.Info("retention policy created",
		"policy_id", p.ID,
		"name", p.Name,
		"retention_days", p.RetentionDays,
		"created_by", user.ID,
	)
	return p, nil
}

// ListRetentionPolicies returns active policies. Requires a
// compliance-reader role.
func (s *Service) ListRetentionPolicies(ctx context.Context, user *store.User) ([]*store.RetentionPolicy, error) {
	if !user.Role.CanReadCompliance() {
		return nil, ErrForbidden
	}
	return s.store.ListRetentionPolicies(ctx)
}

// UpdateRetentionPolicy applies a partial update to a policy. Requires
// a compliance-manager role.
func (s *Service) UpdateRetentionPolicy(ctx context.Context, user *store.User, id int64, upd store.RetentionPolicyUpdate) error {
	if !user.Role.CanManageCompliance() {
		return ErrForbidden
	}
	if upd.RetentionDays != nil && *upd.RetentionDays <= 0 {
		return ErrInvalidPolicy
	}
	return s.store.UpdateRetentionPolicy(ctx, id, upd)
}

// GenerateReportInput is the caller-supplied portion of a compliance report.
type GenerateReportInput struct {
	ReportType  string
	Title       string
	Description string
	Data        map[string]any
}

// GenerateReport records a compliance report together with its audit
// entry. Requires a compliance-manager role.
func (s *Service) GenerateReport(ctx context.Context, user *store.User, in GenerateReportInput, meta RequestMeta) (*store.ComplianceReport, error) {
	if !user.Role.CanManageCompliance() {
		return nil, ErrForbidden
	}
	if in.ReportType == "" || in.Title == "" {
		return nil, ErrInvalidReport
	}

	r := &store.ComplianceReport{
		ReportType:  in.ReportType,
		Title:       in.Title,
		Description: in.Description,
		GeneratedBy: user.ID,
		Data:        in.Data,
	}
	audit := &store.AuditEntry{
		EventType:    store.EventReportGenerated,
		UserID:       user.ID,
		ResourceType: store.ResourceReport,
		NewValues: map[string]any{
			"reportType": in.ReportType,
			"title":      in.Title,
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.store.CreateComplianceReport(ctx, r, audit); err != nil {
		return nil, fmt.Errorf("generating report: %w", err)
	}

	s.logger.Info("compliance report generated",
		"report_id", r.ID,
		"report_type", r.ReportType,
		"generated_by", user.ID,
	)
	return r, nil
}

// ListReports returns generated reports, optionally filtered by type.
// Requires a compliance-reader role.
func (s *Service) ListReports(ctx context.Context, user *store.User, reportType string, limit int) ([]*store.ReportWithGenerator, error) {
	if !user.Role.CanReadCompliance() {
		return nil, ErrForbidden
	}
	return s.store.ListComplianceReports(ctx, reportType, limit)
}

// AuditTrail returns audit entries matching the filter. Requires a
// compliance-reader role.
func (s *Service) AuditTrail(ctx context.Context, user *store.User, f store.AuditFilter) ([]*store.AuditEntryWithUser, error) {
	if !user.Role.CanReadCompliance() {
		return nil, ErrForbidden
	}
	return s.store.ListAuditTrail(ctx, f)
}

// AccessLogs returns access log entries for a resource. Requires a
// compliance-reader role.
func (s *Service) AccessLogs(ctx context.Context, user *store.User, resourceType store.ResourceType, resourceID int64, limit int) ([]*store.AccessLogWithUser, error) {
	if !user.Role.CanReadCompliance() {
		return nil, ErrForbidden
	}
	return s.store.ListAccessLogs(ctx, resourceType, resourceID, limit)
}
