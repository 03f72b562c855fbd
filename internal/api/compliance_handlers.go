// ABOUTME: Compliance handlers: acknowledgments, retention policies, reports and trail reads
// ABOUTME: Role checks live in the compliance service; this layer shapes requests and responses

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/parley-chat/parley/internal/auth"
	"github.com/parley-chat/parley/internal/compliance"
	"github.com/parley-chat/parley/internal/messaging"
	"github.com/parley-chat/parley/internal/store"
)

type ackView struct {
	ID             int64               `json:"id"`
	MessageID      int64               `json:"messageId"`
	UserID         int64               `json:"userId"`
	AcknowledgedAt time.Time           `json:"acknowledgedAt"`
	User           *messaging.UserView `json:"user,omitempty"`
}

type policyView struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	RetentionDays int       `json:"retentionPeriodDays"`
	IsActive      bool      `json:"isActive"`
	CreatedBy     int64     `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

type auditEntryView struct {
	ID           int64               `json:"id"`
	EventType    string              `json:"eventType"`
	UserID       int64               `json:"userId"`
	ResourceType store.ResourceType  `json:"resourceType"`
	ResourceID   int64               `json:"resourceId"`
	OldValues    map[string]any      `json:"oldValues,omitempty"`
	NewValues    map[string]any      `json:"newValues,omitempty"`
	IPAddress    string              `json:"ipAddress,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
	User         *messaging.UserView `json:"user,omitempty"`
}

type accessLogView struct {
	ID           int64               `json:"id"`
	UserID       int64               `json:"userId"`
	Action       store.AccessAction  `json:"action"`
	ResourceType store.ResourceType  `json:"resourceType"`
	ResourceID   int64               `json:"resourceId"`
	IPAddress    string              `json:"ipAddress,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
	User         *messaging.UserView `json:"user,omitempty"`
}

type reportView struct {
	ID          int64               `json:"id"`
	ReportType  string              `json:"reportType"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	GeneratedBy int64               `json:"generatedBy"`
	Data        map[string]any      `json:"data,omitempty"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Generator   *messaging.UserView `json:"generator,omitempty"`
}

type createPolicyRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	RetentionDays int    `json:"retentionPeriodDays"`
}

type updatePolicyRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	RetentionDays *int    `json:"retentionPeriodDays"`
	IsActive      *bool   `json:"isActive"`
}

type generateReportRequest struct {
	ReportType  string         `json:"reportType"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid message id")
		return
	}

	ack, err := s.compliance.Acknowledge(r.Context(), u, id, complianceMeta(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ackView{
		ID:             ack.ID,
		MessageID:      ack.MessageID,
		UserID:         ack.UserID,
		AcknowledgedAt: ack.AcknowledgedAt,
	})
}

func (s *Server) handleListAcknowledgments(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid message id")
		return
	}

	if !u.Role.CanReadCompliance() {
		writeError(w, http.StatusForbidden, codeForbidden, "role does not permit this operation")
		return
	}

	acks, err := s.compliance.ListAcknowledgments(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]ackView, 0, len(acks))
	for _, a := range acks {
		views = append(views, ackView{
			ID:             a.ID,
			MessageID:      a.MessageID,
			UserID:         a.UserID,
			AcknowledgedAt: a.AcknowledgedAt,
			User:           messaging.NewUserView(a.User),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req createPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}

	p, err := s.compliance.CreateRetentionPolicy(r.Context(), u, compliance.CreatePolicyInput{
		Name:          req.Name,
		Description:   req.Description,
		RetentionDays: req.RetentionDays,
	}, complianceMeta(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newPolicyView(p))
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	policies, err := s.compliance.ListRetentionPolicies(r.Context(), u)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]policyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, newPolicyView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid policy id")
		return
	}

	var req updatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}

	err := s.compliance.UpdateRetentionPolicy(r.Context(), u, id, store.RetentionPolicyUpdate{
		Name:          req.Name,
		Description:   req.Description,
		RetentionDays: req.RetentionDays,
		IsActive:      req.IsActive,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	var req generateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}
	if req.ReportType == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "reportType and title are required")
		return
	}

	rep, err := s.compliance.GenerateReport(r.Context(), u, compliance.GenerateReportInput{
		ReportType:  req.ReportType,
		Title:       req.Title,
		Description: req.Description,
		Data:        req.Data,
	}, complianceMeta(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reportView{
		ID:          rep.ID,
		ReportType:  rep.ReportType,
		Title:       rep.Title,
		Description: rep.Description,
		GeneratedBy: rep.GeneratedBy,
		Data:        rep.Data,
		GeneratedAt: rep.GeneratedAt,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	reports, err := s.compliance.ListReports(r.Context(), u, r.URL.Query().Get("type"), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]reportView, 0, len(reports))
	for _, rep := range reports {
		views = append(views, reportView{
			ID:          rep.ID,
			ReportType:  rep.ReportType,
			Title:       rep.Title,
			Description: rep.Description,
			GeneratedBy: rep.GeneratedBy,
			Data:        rep.Data,
			GeneratedAt: rep.GeneratedAt,
			Generator:   messaging.NewUserView(rep.Generator),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	f, ok := auditFilterFromQuery(w, r)
	if !ok {
		return
	}

	entries, err := s.compliance.AuditTrail(r.Context(), u, f)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditEntryView{
			ID:           e.ID,
			EventType:    e.EventType,
			UserID:       e.UserID,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			OldValues:    e.OldValues,
			NewValues:    e.NewValues,
			IPAddress:    e.IPAddress,
			Timestamp:    e.Timestamp,
			User:         messaging.NewUserView(e.User),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())

	q := r.URL.Query()
	resourceType := store.ResourceType(q.Get("resourceType"))
	if resourceType == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "resourceType is required")
		return
	}
	resourceID, err := strconv.ParseInt(q.Get("resourceId"), 10, 64)
	if err != nil || resourceID <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "resourceId is required")
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	logs, err := s.compliance.AccessLogs(r.Context(), u, resourceType, resourceID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]accessLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, accessLogView{
			ID:           l.ID,
			UserID:       l.UserID,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			IPAddress:    l.IPAddress,
			Timestamp:    l.Timestamp,
			User:         messaging.NewUserView(l.User),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func newPolicyView(p *store.RetentionPolicy) policyView {
	return policyView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		RetentionDays: p.RetentionDays,
		IsActive:      p.IsActive,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
	}
}

// queryLimit parses the optional limit query parameter. Writes the
// error response itself and reports false on bad input.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid limit")
		return 0, false
	}
	return n, true
}

// auditFilterFromQuery builds an AuditFilter from query parameters:
// eventType, userId, resourceType, since, until (RFC 3339) and limit.
func auditFilterFromQuery(w http.ResponseWriter, r *http.Request) (store.AuditFilter, bool) {
	var f store.AuditFilter
	q := r.URL.Query()

	if v := q.Get("eventType"); v != "" {
		f.EventType = &v
	}
	if v := q.Get("resourceType"); v != "" {
		rt := store.ResourceType(v)
		f.ResourceType = &rt
	}
	if v := q.Get("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid userId")
			return f, false
		}
		f.UserID = &id
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid since timestamp")
			return f, false
		}
		f.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid until timestamp")
			return f, false
		}
		f.Until = &t
	}

	limit, ok := queryLimit(w, r)
	if !ok {
		return f, false
	}
	f.Limit = limit
	return f, true
}
