// ABOUTME: Compliance report store methods, append-only once generated
// ABOUTME: Report creation is transactional with its audit entry

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateComplianceReport inserts a report and appends its audit entry
// in one transaction. The audit entry's ResourceID is set to the new
// report ID.
func (s *SQLiteStore) CreateComplianceReport(ctx context.Context, r *ComplianceReport, audit *AuditEntry) error {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}

	dataJSON, err := marshalValues(r.Data)
	if err != nil {
		return fmt.Errorf("marshaling report data: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO compliance_reports (report_type, title, description, generated_by, report_data, generated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			r.ReportType,
			r.Title,
			r.Description,
			r.GeneratedBy,
			dataJSON,
			formatTime(r.GeneratedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting compliance report: %w", err)
		}

		if r.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading compliance report id: %w", err)
		}

		if audit != nil {
			audit.ResourceID = r.ID
			if err := insertAuditEntry(ctx, tx, audit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created compliance report", "id", r.ID, "type", r.ReportType)
	return nil
}

// ListComplianceReports returns reports, newest first, optionally
// filtered by type, with the generating user attached. Limit defaults
// to 50.
func (s *SQLiteStore) ListComplianceReports(ctx context.Context, reportType string, limit int) ([]*ReportWithGenerator, error) {
	if limit <= 0 {
		limit = 50
	}

	var typeFilter *string
	if reportType != "" {
		typeFilter = &reportType
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.report_type, r.title, r.description, r.generated_by, r.report_data, r.generated_at,
			`+prefixedUserColumns("u")+`
		FROM compliance_reports r
		JOIN users u ON u.id = r.generated_by
		WHERE (? IS NULL OR r.report_type = ?)
		ORDER BY r.generated_at DESC, r.id DESC
		LIMIT ?
	`, typeFilter, typeFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("querying compliance reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []*ReportWithGenerator
	for rows.Next() {
		var r ReportWithGenerator
		var dataJSON *string
		var generatedAt string
		var u User
		var online int
		var lastSeen *string
		var userCreatedAt string

		if err := rows.Scan(
			&r.ID, &r.ReportType, &r.Title, &r.Description, &r.GeneratedBy, &dataJSON, &generatedAt,
			&u.ID, &u.Username, &u.PasswordHash, &u.Role, &online, &lastSeen, &userCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning compliance report: %w", err)
		}

		if r.Data, err = unmarshalValues(dataJSON); err != nil {
			return nil, err
		}
		if r.GeneratedAt, err = parseTime(generatedAt); err != nil {
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

		r.Generator = &u
		reports = append(reports, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating compliance reports: %w", err)
	}

	if reports == nil {
		reports = []*ReportWithGenerator{}
	}
	return reports, nil
}
