// ABOUTME: Account handlers: registration, login, logout and profile
// ABOUTME: Login issues a bearer token; logout clears the durable presence flag

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/messaging"
	"github.com/parley-chat/parley/internal/store"
)

type credentialsRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     store.Role `json:"role,omitempty"`
}

type authResponse struct {
	Token string              `json:"token"`
	User  *messaging.UserView `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "username and a password of at least 8 characters are required")
		return
	}
	if req.Role == "" {
		req.Role = store.RoleMember
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "unknown role")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	u := &store.User{Username: req.Username, PasswordHash: hash, Role: req.Role}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		s.writeDomainError(w, err)
		return
	}

	token, err := s.verifier.Generate(u.ID, s.tokenTTL)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username, "role", u.Role)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: messaging.NewUserView(u)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}

	u, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		// Same response for unknown user and wrong password
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	if err := s.hasher.Compare(u.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	token, err := s.verifier.Generate(u.ID, s.tokenTTL)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := s.store.SetUserPresence(r.Context(), u.ID, true); err != nil {
		s.writeDomainError(w, err)
		return
	}
	u.IsOnline = true

	s.logger.Info("user logged in", "user_id", u.ID, "username", u.Username)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: messaging.NewUserView(u)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	// Tokens are stateless; logout closes any live connection and
	// clears the presence flag.
	if link, ok := s.hub.Lookup(u.ID); ok {
		s.hub.Unregister(r.Context(), u.ID, link.ID())
		link.Shutdown(websocket.CloseNormalClosure, "logged out")
	} else if err := s.store.SetUserPresence(r.Context(), u.ID, false); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, messaging.NewUserView(u))
}

func validRole(role store.Role) bool {
	for _, r := range store.ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
