// ABOUTME: Audit trail and access log store methods, both append-only
// ABOUTME: The audit trail is the canonical compliance record of state changes

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Audit event types produced by the core.
const (
	EventMessageSent            = "message_sent"
	EventMessageAcknowledged    = "message_acknowledged"
	EventRetentionPolicyCreated = "retention_policy_created"
	EventReportGenerated        = "compliance_report_generated"
)

// execer abstracts *sql.DB and *sql.Tx so append helpers can run inside
// or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AppendAuditEntry appends a new entry to the audit trail.
func (s *SQLiteStore) AppendAuditEntry(ctx context.Context, e *AuditEntry) error {
	if err := insertAuditEntry(ctx, s.db, e); err != nil {
		return err
	}
	s.logger.Debug("appended audit entry",
		"id", e.ID,
		"event_type", e.EventType,
		"user_id", e.UserID,
		"resource", string(e.ResourceType)+"/"+fmt.Sprint(e.ResourceID),
	)
	return nil
}

// insertAuditEntry performs the actual insert against db or an open tx.
func insertAuditEntry(ctx context.Context, db execer, e *AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	oldJSON, err := marshalValues(e.OldValues)
	if err != nil {
		return fmt.Errorf("marshaling old values: %w", err)
	}
	newJSON, err := marshalValues(e.NewValues)
	if err != nil {
		return fmt.Errorf("marshaling new values: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO audit_trails (event_type, user_id, resource_type, resource_id,
			old_values, new_values, ip_address, user_agent, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.EventType,
		e.UserID,
		e.ResourceType,
		e.ResourceID,
		oldJSON,
		newJSON,
		e.IPAddress,
		e.UserAgent,
		formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading audit entry id: %w", err)
	}
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to list limits.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const auditTrailQuery = `
	SELECT a.id, a.event_type, a.user_id, a.resource_type, a.resource_id,
		a.old_values, a.new_values, a.ip_address, a.user_agent, a.ts,
		u.id, u.username, u.password_hash, u.role, u.is_online, u.last_seen, u.created_at
	FROM audit_trails a
	JOIN users u ON u.id = a.user_id
	WHERE (? IS NULL OR a.user_id = ?)
	  AND (? IS NULL OR a.resource_type = ?)
	  AND (? IS NULL OR a.event_type = ?)
	  AND (? IS NULL OR a.ts >= ?)
	  AND (? IS NULL OR a.ts <= ?)
	ORDER BY a.ts DESC, a.id DESC
	LIMIT ?
`

// ListAuditTrail returns audit entries matching the filter, newest
// first, with the acting user attached.
func (s *SQLiteStore) ListAuditTrail(ctx context.Context, f AuditFilter) ([]*AuditEntryWithUser, error) {
	limit := normalizeLimit(f.Limit)

	var resourceType, sinceStr, untilStr *string
	if f.ResourceType != nil {
		v := string(*f.ResourceType)
		resourceType = &v
	}
	if f.Since != nil {
		v := formatTime(*f.Since)
		sinceStr = &v
	}
	if f.Until != nil {
		v := formatTime(*f.Until)
		untilStr = &v
	}

	rows, err := s.db.QueryContext(ctx, auditTrailQuery,
		f.UserID, f.UserID,
		resourceType, resourceType,
		f.EventType, f.EventType,
		sinceStr, sinceStr,
		untilStr, untilStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*AuditEntryWithUser
	for rows.Next() {
		var e AuditEntryWithUser
		var oldJSON, newJSON *string
		var ts string
		var u User
		var online int
		var lastSeen *string
		var userCreatedAt string

		if err := rows.Scan(
			&e.ID, &e.EventType, &e.UserID, &e.ResourceType, &e.ResourceID,
			&oldJSON, &newJSON, &e.IPAddress, &e.UserAgent, &ts,
			&u.ID, &u.Username, &u.PasswordHash, &u.Role, &online, &lastSeen, &userCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if e.OldValues, err = unmarshalValues(oldJSON); err != nil {
			return nil, err
		}
		if e.NewValues, err = unmarshalValues(newJSON); err != nil {
			return nil, err
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}

		u.IsOnline = online != 0
		if lastSeen != nil {
			t, err := parseTime(*lastSeen)
			if err != nil {
				return nil, err
			}
			u.LastSeen = &t
		}
		if u.CreatedAt, err = parseTime(userCreatedAt); err != nil {
			return nil, err
		}

		e.User = &u
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []*AuditEntryWithUser{}
	}
	return entries, nil
}

// AppendAccessLog appends a new access log entry.
func (s *SQLiteStore) AppendAccessLog(ctx context.Context, l *AccessLog) error {
	return insertAccessLog(ctx, s.db, l)
}

// insertAccessLog performs the actual insert against db or an open tx.
func insertAccessLog(ctx context.Context, db execer, l *AccessLog) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO access_logs (user_id, action, resource_type, resource_id, ip_address, user_agent, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		l.UserID,
		l.Action,
		l.ResourceType,
		l.ResourceID,
		l.IPAddress,
		l.UserAgent,
		formatTime(l.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting access log: %w", err)
	}

	if l.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading access log id: %w", err)
	}
	return nil
}

// ListAccessLogs returns access log entries for a resource, newest
// first, with the acting user attached.
func (s *SQLiteStore) ListAccessLogs(ctx context.Context, resourceType ResourceType, resourceID int64, limit int) ([]*AccessLogWithUser, error) {
	limit = normalizeLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.user_id, l.action, l.resource_type, l.resource_id,
			l.ip_address, l.user_agent, l.ts,
			`+prefixedUserColumns("u")+`
		FROM access_logs l
		JOIN users u ON u.id = l.user_id
		WHERE l.resource_type = ? AND l.resource_id = ?
		ORDER BY l.ts DESC, l.id DESC
		LIMIT ?
	`, resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying access logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*AccessLogWithUser
	for rows.Next() {
		var l AccessLogWithUser
		var ts string
		var u User
		var online int
		var lastSeen *string
		var userCreatedAt string

		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID,
			&l.IPAddress, &l.UserAgent, &ts,
			&u.ID, &u.Username, &u.PasswordHash, &u.Role, &online, &lastSeen, &userCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning access log: %w", err)
		}

		if l.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		u.IsOnline = online != 0
		if lastSeen != nil {
			t, err := parseTime(*lastSeen)
			if err != nil {
				return nil, err
			}
			u.LastSeen = &t
		}
		if u.CreatedAt, err = parseTime(userCreatedAt); err != nil {
			return nil, err
		}

		l.User = &u
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access logs: %w", err)
	}

	if logs == nil {
		logs = []*AccessLogWithUser{}
	}
	return logs, nil
}

// marshalValues renders an optional snapshot map as JSON
func marshalValues(v map[string]any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

// unmarshalValues parses an optional JSON snapshot
func unmarshalValues(s *string) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(*s), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling values: %w", err)
	}
	return v, nil
}
