// ABOUTME: Tests for retention policy and compliance report store operations
// ABOUTME: Covers transactional audit records, active-only listing and type filters

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateRetentionPolicy(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	admin := createTestUser(t, store, "admin", RoleAdmin)

	policy := &RetentionPolicy{
		Name:          "7-year",
		Description:   "regulatory minimum",
		RetentionDays: 2555,
		IsActive:      true,
		CreatedBy:     admin.ID,
	}
	audit := &AuditEntry{
		EventType:    EventRetentionPolicyCreated,
		UserID:       admin.ID,
		ResourceType: ResourceRetentionPolicy,
	}

	require.NoError(t, store.CreateRetentionPolicy(ctx, policy, audit))
	assert.NotZero(t, policy.ID)
	assert.Equal(t, policy.ID, audit.ResourceID)

	entries, err := store.ListAuditTrail(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventRetentionPolicyCreated, entries[0].EventType)
	assert.Equal(t, policy.ID, entries[0].ResourceID)
}

func TestStore_ListRetentionPolicies_ActiveOnly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	admin := createTestUser(t, store, "admin", RoleAdmin)

	active := &RetentionPolicy{Name: "active", RetentionDays: 30, IsActive: true, CreatedBy: admin.ID}
	require.NoError(t, store.CreateRetentionPolicy(ctx, active, nil))

	inactive := &RetentionPolicy{Name: "inactive", RetentionDays: 30, IsActive: false, CreatedBy: admin.ID}
	require.NoError(t, store.CreateRetentionPolicy(ctx, inactive, nil))

	policies, err := store.ListRetentionPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "active", policies[0].Name)
}

func TestStore_UpdateRetentionPolicy(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	admin := createTestUser(t, store, "admin", RoleAdmin)

	policy := &RetentionPolicy{Name: "initial", RetentionDays: 30, IsActive: true, CreatedBy: admin.ID}
	require.NoError(t, store.CreateRetentionPolicy(ctx, policy, nil))

	days := 90
	inactive := false
	require.NoError(t, store.UpdateRetentionPolicy(ctx, policy.ID, RetentionPolicyUpdate{
		RetentionDays: &days,
		IsActive:      &inactive,
	}))

	// Deactivated policies disappear from the default listing
	policies, err := store.ListRetentionPolicies(ctx)
	require.NoError(t, err)
	assert.Empty(t, policies)

	assert.ErrorIs(t, store.UpdateRetentionPolicy(ctx, 9999, RetentionPolicyUpdate{}), ErrNotFound)
}

func TestStore_CreateComplianceReport(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	officer := createTestUser(t, store, "officer", RoleComplianceOfficer)

	report := &ComplianceReport{
		ReportType:  "audit_summary",
		Title:       "Q3 audit summary",
		GeneratedBy: officer.ID,
		Data:        map[string]any{"total_events": float64(12)},
	}
	audit := &AuditEntry{
		EventType:    EventReportGenerated,
		UserID:       officer.ID,
		ResourceType: ResourceReport,
	}

	require.NoError(t, store.CreateComplianceReport(ctx, report, audit))
	assert.NotZero(t, report.ID)
	assert.Equal(t, report.ID, audit.ResourceID)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestStore_ListComplianceReports(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	officer := createTestUser(t, store, "officer", RoleComplianceOfficer)

	for _, reportType := range []string{"audit_summary", "retention_review", "audit_summary"} {
		require.NoError(t, store.CreateComplianceReport(ctx, &ComplianceReport{
			ReportType:  reportType,
			Title:       "report",
			GeneratedBy: officer.ID,
		}, nil))
	}

	all, err := store.ListComplianceReports(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	require.NotNil(t, all[0].Generator)
	assert.Equal(t, "officer", all[0].Generator.Username)

	filtered, err := store.ListComplianceReports(ctx, "retention_review", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "retention_review", filtered[0].ReportType)
}

func TestStore_CreateFile(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	alice, conv := setupConversation(t, store)

	msg := &Message{ConversationID: conv.ID, SenderID: alice.ID, Content: "see attachment"}
	require.NoError(t, store.CreateMessage(ctx, msg, nil, nil))

	key := "key-ref-1"
	f := &File{
		MessageID:    msg.ID,
		Filename:     "d41d8cd9.pdf",
		OriginalName: "report.pdf",
		MimeType:     "application/pdf",
		Size:         2048,
		EncryptedKey: &key,
	}
	require.NoError(t, store.CreateFile(ctx, f))
	assert.NotZero(t, f.ID)

	files, err := store.ListMessageFiles(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0].OriginalName)
	require.NotNil(t, files[0].EncryptedKey)
	assert.Equal(t, "key-ref-1", *files[0].EncryptedKey)
}
