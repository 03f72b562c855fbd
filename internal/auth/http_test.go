// ABOUTME: Tests for the HTTP authentication middleware
// ABOUTME: Covers missing/malformed headers, bad tokens and successful context injection

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley/internal/store"
)

// fakeUserStore serves a fixed set of users
type fakeUserStore struct {
	users map[int64]*store.User
}

func (f *fakeUserStore) GetUser(_ context.Context, id int64) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func setupMiddleware(t *testing.T) (*JWTVerifier, http.Handler, *store.User) {
	t.Helper()

	verifier := NewJWTVerifier([]byte("test-secret"))
	alice := &store.User{ID: 1, Username: "alice", Role: store.RoleMember}
	users := &fakeUserStore{users: map[int64]*store.User{1: alice}}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromContext(r.Context())
		require.NotNil(t, u)
		w.Header().Set("X-Username", u.Username)
		w.WriteHeader(http.StatusOK)
	})

	return verifier, Middleware(users, verifier)(inner), alice
}

func TestMiddleware_MissingHeader(t *testing.T) {
	_, handler, _ := setupMiddleware(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	_, handler, _ := setupMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_InvalidToken(t *testing.T) {
	_, handler, _ := setupMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_UnknownUser(t *testing.T) {
	verifier, handler, _ := setupMiddleware(t)

	token, err := verifier.Generate(999, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_Success(t *testing.T) {
	verifier, handler, alice := setupMiddleware(t)

	token, err := verifier.Generate(alice.ID, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Header().Get("X-Username"))
}

func TestUserFromContext_Absent(t *testing.T) {
	assert.Nil(t, UserFromContext(context.Background()))
}
