// ABOUTME: End-to-end HTTP tests over a real store, hub and services
// ABOUTME: Covers the auth flow, messaging endpoints, error envelope and role gating

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/compliance"
	"github.com/parley-chat/parley/internal/messaging"
	"github.com/parley-chat/parley/internal/realtime"
	"github.com/parley-chat/parley/internal/store"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hub := realtime.NewHub(st, st, realtime.ScopeGlobal, nil)
	t.Cleanup(hub.Close)

	msgs := messaging.NewService(st, hub, 0, nil)
	comp := compliance.NewService(st, nil)
	verifier := auth.NewJWTVerifier([]byte("test-secret-0123456789"))
	hasher := auth.NewBcryptHasher(4)

	srv := NewServer(st, hub, msgs, comp, verifier, hasher, time.Hour, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON issues a request with an optional bearer token and JSON body.
func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func registerUser(t *testing.T, ts *httptest.Server, username string, role store.Role) (string, int64) {
	t.Helper()

	resp, body := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": username,
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out.User.ID
}

func createConversation(t *testing.T, ts *httptest.Server, token string, participantIDs ...int64) int64 {
	t.Helper()

	resp, body := doJSON(t, ts, http.MethodPost, "/api/conversations", token, map[string]any{
		"name":           "test",
		"participantIds": participantIDs,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.ID
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	resp, body := doJSON(t, ts, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")
}

func TestAuthFlow(t *testing.T) {
	ts := setupServer(t)

	token, _ := registerUser(t, ts, "alice", store.RoleMember)

	// Duplicate username is rejected
	resp, body := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "validation_failed")

	// Short password is rejected
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "bob",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Login with the right password
	resp, body = doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "token")
	assert.Contains(t, string(body), `"isOnline":true`)

	// Wrong password and unknown user both return the same envelope
	resp, body = doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "unauthorized")

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": "nobody",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Profile requires the token
	resp, body = doJSON(t, ts, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "alice")

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMessageEndpoints(t *testing.T) {
	ts := setupServer(t)

	aliceToken, _ := registerUser(t, ts, "alice", store.RoleMember)
	_, bobID := registerUser(t, ts, "bob", store.RoleMember)
	convID := createConversation(t, ts, aliceToken, bobID)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"conversationId": convID,
		"content":        "hello",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var msg struct {
		ID          int64  `json:"id"`
		ContentHash string `json:"contentHash"`
		Sender      struct {
			Username string `json:"username"`
		} `json:"sender"`
	}
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", msg.ContentHash)
	assert.Equal(t, "alice", msg.Sender.Username)

	// Empty content is a validation failure
	resp, body = doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"conversationId": convID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "validation_failed")

	// So is over-length content; the client must not retry it
	resp, body = doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"conversationId": convID,
		"content":        strings.Repeat("x", 20000),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "validation_failed")

	// Unknown conversation is a 404
	resp, body = doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"conversationId": 999,
		"content":        "hi",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not_found")

	// Listing returns the message
	resp, body = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", convID), aliceToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hello")

	// Edit and delete
	resp, body = doJSON(t, ts, http.MethodPatch, fmt.Sprintf("/api/messages/%d", msg.ID), aliceToken, map[string]any{
		"content": "hello again",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hello again")

	resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msg.ID), aliceToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMessageEndpoints_NonParticipant(t *testing.T) {
	ts := setupServer(t)

	aliceToken, _ := registerUser(t, ts, "alice", store.RoleMember)
	_, bobID := registerUser(t, ts, "bob", store.RoleMember)
	eveToken, _ := registerUser(t, ts, "eve", store.RoleMember)
	convID := createConversation(t, ts, aliceToken, bobID)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/messages", eveToken, map[string]any{
		"conversationId": convID,
		"content":        "intruding",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(body), "forbidden")

	resp, _ = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/conversations/%d", convID), eveToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAcknowledgeEndpoint(t *testing.T) {
	ts := setupServer(t)

	aliceToken, _ := registerUser(t, ts, "alice", store.RoleMember)
	bobToken, bobID := registerUser(t, ts, "bob", store.RoleMember)
	convID := createConversation(t, ts, aliceToken, bobID)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"conversationId": convID,
		"content":        "please acknowledge",
		"requiresAck":    true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &msg))

	ackPath := fmt.Sprintf("/api/messages/%d/acknowledge", msg.ID)
	resp, _ = doJSON(t, ts, http.MethodPost, ackPath, bobToken, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// The duplicate is rejected with its own error code
	resp, body = doJSON(t, ts, http.MethodPost, ackPath, bobToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "duplicate_acknowledgment")
}

func TestComplianceEndpoints_RoleGating(t *testing.T) {
	ts := setupServer(t)

	memberToken, _ := registerUser(t, ts, "member", store.RoleMember)
	adminToken, _ := registerUser(t, ts, "root", store.RoleAdmin)
	auditorToken, _ := registerUser(t, ts, "auditor", store.RoleAuditor)

	// Members may not read the audit trail
	resp, body := doJSON(t, ts, http.MethodGet, "/api/compliance/audit-trail", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(body), "forbidden")

	// Admin creates a seven-year policy
	resp, body = doJSON(t, ts, http.MethodPost, "/api/compliance/retention-policies", adminToken, map[string]any{
		"name":                "standard-7-year",
		"retentionPeriodDays": 2555,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var policy struct {
		RetentionDays int  `json:"retentionPeriodDays"`
		IsActive      bool `json:"isActive"`
	}
	require.NoError(t, json.Unmarshal(body, &policy))
	assert.Equal(t, 2555, policy.RetentionDays)
	assert.True(t, policy.IsActive)

	// Auditors read but never write
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/compliance/retention-policies", auditorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/compliance/retention-policies", auditorToken, map[string]any{
		"name":                "p",
		"retentionPeriodDays": 30,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Policy creation is itself audited
	resp, body = doJSON(t, ts, http.MethodGet, "/api/compliance/audit-trail?eventType=retention_policy_created", auditorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "retention_policy_created")
}

func TestComplianceReportEndpoints(t *testing.T) {
	ts := setupServer(t)

	officerToken, _ := registerUser(t, ts, "officer", store.RoleComplianceOfficer)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/compliance/reports", officerToken, map[string]any{
		"reportType": "audit_summary",
		"title":      "Q3 audit summary",
		"data":       map[string]any{"totalMessages": 42},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, ts, http.MethodGet, "/api/compliance/reports?type=audit_summary", officerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Q3 audit summary")
}

func TestAccessLogsEndpoint(t *testing.T) {
	ts := setupServer(t)

	aliceToken, _ := registerUser(t, ts, "alice", store.RoleMember)
	_, bobID := registerUser(t, ts, "bob", store.RoleMember)
	auditorToken, _ := registerUser(t, ts, "auditor", store.RoleAuditor)
	convID := createConversation(t, ts, aliceToken, bobID)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"conversationId": convID,
		"content":        "hello",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &msg))

	path := fmt.Sprintf("/api/compliance/access-logs?resourceType=message&resourceId=%d", msg.ID)
	resp, body = doJSON(t, ts, http.MethodGet, path, auditorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"action":"create"`)

	// resourceType is mandatory
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/compliance/access-logs", auditorToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
