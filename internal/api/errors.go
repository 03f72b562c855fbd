// ABOUTME: HTTP error envelope and mapping from domain errors to status codes
// ABOUTME: All error responses share the {"code","message"} shape

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parley-chat/parley/internal/compliance"
	"github.com/parley-chat/parley/internal/messaging"
	"github.com/parley-chat/parley/internal/store"
)

// Error codes returned in the JSON envelope.
const (
	codeUnauthorized     = "unauthorized"
	codeForbidden        = "forbidden"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeDuplicateAck     = "duplicate_acknowledgment"
	codeStorageFailure   = "storage_failure"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps a service-layer error onto the HTTP envelope.
// Unknown errors surface as storage_failure without internal detail.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
	case errors.Is(err, store.ErrDuplicateAck):
		writeError(w, http.StatusConflict, codeDuplicateAck, "message already acknowledged")
	case errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, codeValidationFailed, "username already exists")
	case errors.Is(err, compliance.ErrForbidden),
		errors.Is(err, messaging.ErrNotParticipant),
		errors.Is(err, messaging.ErrNotSender):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, messaging.ErrEmptyContent),
		errors.Is(err, messaging.ErrContentTooLong),
		errors.Is(err, messaging.ErrNoParticipants),
		errors.Is(err, messaging.ErrEmptyFilename),
		errors.Is(err, messaging.ErrFileTooLarge),
		errors.Is(err, compliance.ErrInvalidPolicy),
		errors.Is(err, compliance.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeStorageFailure, "internal error")
	}
}
