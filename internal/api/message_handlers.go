// ABOUTME: Message handlers: creation, edits, deletion, reads and file metadata
// ABOUTME: Creation drives the transactional compliance trail in the messaging service

package api

import (
	"encoding/json"
	"net/http"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/messaging"
)

type createMessageRequest struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
	Classification string `json:"classification,omitempty"`
	Priority       string `json:"priority,omitempty"`
	RequiresAck    bool   `json:"requiresAck,omitempty"`
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

type attachFileRequest struct {
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}
	if req.ConversationID <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "conversationId is required")
		return
	}

	msg, err := s.messages.CreateMessage(r.Context(), u, messaging.CreateMessageInput{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Type:           req.Type,
		Classification: req.Classification,
		Priority:       req.Priority,
		RequiresAck:    req.RequiresAck,
	}, requestMeta(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messaging.NewMessageView(msg))
}

func (s *Server) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid message id")
		return
	}

	var req updateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}

	msg, err := s.messages.UpdateMessage(r.Context(), u, id, req.Content)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messaging.NewMessageView(msg))
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid message id")
		return
	}

	if err := s.messages.DeleteMessage(r.Context(), u, id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid message id")
		return
	}

	if err := s.messages.MarkRead(r.Context(), u, id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleAttachFile(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid message id")
		return
	}

	var req attachFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}

	f, err := s.messages.AttachFile(r.Context(), u, messaging.AttachFileInput{
		MessageID:    id,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		Size:         req.Size,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messaging.NewFileView(f))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid message id")
		return
	}

	files, err := s.messages.ListFiles(r.Context(), u, id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]*messaging.FileView, 0, len(files))
	for _, f := range files {
		views = append(views, messaging.NewFileView(f))
	}
	writeJSON(w, http.StatusOK, views)
}
