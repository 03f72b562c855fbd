// ABOUTME: Test helpers and user store tests
// ABOUTME: Covers registration, lookup, presence updates and boot-time presence reset

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// createTestUser inserts a user with the given role.
func createTestUser(t *testing.T, s *SQLiteStore, username string, role Role) *User {
	t.Helper()
	u := &User{
		Username:     username,
		PasswordHash: "$2a$10$test-hash",
		Role:         role,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestStore_CreateUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	u := &User{Username: "alice", PasswordHash: "hash"}
	err := store.CreateUser(ctx, u)
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, RoleMember, u.Role) // defaulted
	assert.False(t, u.CreatedAt.IsZero())

	retrieved, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", retrieved.Username)
	assert.False(t, retrieved.IsOnline)
}

func TestStore_CreateUser_DuplicateUsername(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{Username: "alice", PasswordHash: "h1"}))
	err := store.CreateUser(ctx, &User{Username: "alice", PasswordHash: "h2"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestStore_GetUserByUsername(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, store, "bob", RoleAdmin)

	u, err := store.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)
	assert.Equal(t, RoleAdmin, u.Role)

	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetUserPresence(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, store, "alice", RoleMember)

	require.NoError(t, store.SetUserPresence(ctx, u.ID, true))
	online, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, online.IsOnline)
	require.NotNil(t, online.LastSeen)

	require.NoError(t, store.SetUserPresence(ctx, u.ID, false))
	offline, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, offline.IsOnline)

	assert.ErrorIs(t, store.SetUserPresence(ctx, 9999, true), ErrNotFound)
}

func TestStore_PresenceResetOnReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	u := &User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, first.CreateUser(ctx, u))
	require.NoError(t, first.SetUserPresence(ctx, u.ID, true))
	require.NoError(t, first.Close())

	// A restart rebuilds the registry empty, so the flag must reset
	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	reloaded, err := second.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsOnline)
}

func TestRole_Gates(t *testing.T) {
	tests := []struct {
		role      Role
		canRead   bool
		canManage bool
	}{
		{RoleMember, false, false},
		{RoleAdmin, true, true},
		{RoleComplianceOfficer, true, true},
		{RoleAuditor, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.canRead, tt.role.CanReadCompliance())
			assert.Equal(t, tt.canManage, tt.role.CanManageCompliance())
		})
	}
}
