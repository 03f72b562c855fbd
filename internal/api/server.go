// ABOUTME: HTTP server assembly: routes, middleware and request plumbing
// ABOUTME: All /api routes except registration, login and health require a bearer token

package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/compliance"
	"github.com/parley-chat/parley/internal/messaging"
	"github.com/parley-chat/parley/internal/realtime"
	"github.com/parley-chat/parley/internal/store"
)

// Server wires the HTTP surface over the domain services.
type Server struct {
	store      store.Store
	hub        *realtime.Hub
	messages   *messaging.Service
	compliance *compliance.Service
	verifier   *auth.JWTVerifier
	hasher     auth.PasswordHasher
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// NewServer creates the API server. Pass nil logger for default.
func NewServer(
	st store.Store,
	hub *realtime.Hub,
	messages *messaging.Service,
	comp *compliance.Service,
	verifier *auth.JWTVerifier,
	hasher auth.PasswordHasher,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:      st,
		hub:        hub,
		messages:   messages,
		compliance: comp,
		verifier:   verifier,
		hasher:     hasher,
		tokenTTL:   tokenTTL,
		logger:     logger.With("component", "api"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := auth.Middleware(s.store, s.verifier)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.Handle("POST /api/auth/logout", authed(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(s.handleProfile)))

	mux.Handle("GET /api/conversations", authed(http.HandlerFunc(s.handleListConversations)))
	mux.Handle("POST /api/conversations", authed(http.HandlerFunc(s.handleCreateConversation)))
	mux.Handle("GET /api/conversations/{id}", authed(http.HandlerFunc(s.handleGetConversation)))
	mux.Handle("GET /api/conversations/{id}/messages", authed(http.HandlerFunc(s.handleListMessages)))
	mux.Handle("POST /api/conversations/{id}/participants", authed(http.HandlerFunc(s.handleAddParticipant)))

	mux.Handle("POST /api/messages", authed(http.HandlerFunc(s.handleCreateMessage)))
	mux.Handle("PATCH /api/messages/{id}", authed(http.HandlerFunc(s.handleUpdateMessage)))
	mux.Handle("DELETE /api/messages/{id}", authed(http.HandlerFunc(s.handleDeleteMessage)))
	mux.Handle("POST /api/messages/{id}/read", authed(http.HandlerFunc(s.handleMarkRead)))
	mux.Handle("POST /api/messages/{id}/acknowledge", authed(http.HandlerFunc(s.handleAcknowledge)))
	mux.Handle("GET /api/messages/{id}/acknowledgments", authed(http.HandlerFunc(s.handleListAcknowledgments)))
	mux.Handle("POST /api/messages/{id}/files", authed(http.HandlerFunc(s.handleAttachFile)))
	mux.Handle("GET /api/messages/{id}/files", authed(http.HandlerFunc(s.handleListFiles)))

	mux.Handle("GET /api/compliance/audit-trail", authed(http.HandlerFunc(s.handleAuditTrail)))
	mux.Handle("GET /api/compliance/access-logs", authed(http.HandlerFunc(s.handleAccessLogs)))
	mux.Handle("POST /api/compliance/retention-policies", authed(http.HandlerFunc(s.handleCreatePolicy)))
	mux.Handle("GET /api/compliance/retention-policies", authed(http.HandlerFunc(s.handleListPolicies)))
	mux.Handle("PATCH /api/compliance/retention-policies/{id}", authed(http.HandlerFunc(s.handleUpdatePolicy)))
	mux.Handle("POST /api/compliance/reports", authed(http.HandlerFunc(s.handleGenerateReport)))
	mux.Handle("GET /api/compliance/reports", authed(http.HandlerFunc(s.handleListReports)))

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestMeta extracts the client origin recorded on compliance records.
func requestMeta(r *http.Request) messaging.RequestMeta {
	return messaging.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func complianceMeta(r *http.Request) compliance.RequestMeta {
	return compliance.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
