// ABOUTME: Conversation handlers: creation, listing and participant management
// ABOUTME: Reads are gated on the caller's membership by the messaging service

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/messaging"
	"github.com/parley-chat/parley/internal/store"
)

type createConversationRequest struct {
	Name           string  `json:"name"`
	ParticipantIDs []int64 `json:"participantIds"`
	IsEncrypted    bool    `json:"isEncrypted"`
}

type addParticipantRequest struct {
	UserID int64 `json:"userId"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}

	conv, err := s.messages.CreateConversation(r.Context(), u, messaging.CreateConversationInput{
		Name:           req.Name,
		ParticipantIDs: req.ParticipantIDs,
		IsEncrypted:    req.IsEncrypted,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messaging.NewConversationView(conv))
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	convs, err := s.messages.ListConversations(r.Context(), u)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messaging.NewConversationViews(convs))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid conversation id")
		return
	}

	conv, err := s.messages.GetConversation(r.Context(), u, id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.compliance.LogAccess(r.Context(), u, store.ActionRead, store.ResourceConversation, id, complianceMeta(r))
	writeJSON(w, http.StatusOK, messaging.NewConversationView(conv))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid conversation id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid limit")
			return
		}
		limit = n
	}

	msgs, err := s.messages.ListMessages(r.Context(), u, id, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.compliance.LogAccess(r.Context(), u, store.ActionRead, store.ResourceConversation, id, complianceMeta(r))
	writeJSON(w, http.StatusOK, messaging.NewMessageViews(msgs))
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid conversation id")
		return
	}

	var req addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "userId is required")
		return
	}

	if err := s.messages.AddParticipant(r.Context(), u, id, req.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}
