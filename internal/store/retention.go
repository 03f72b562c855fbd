// ABOUTME: Retention policy store methods
// ABOUTME: Policy creation is transactional with its audit entry; listing is active-only

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateRetentionPolicy inserts a policy and appends its audit entry in
// one transaction. The audit entry's ResourceID is set to the new
// policy ID.
func (s *SQLiteStore) CreateRetentionPolicy(ctx context.Context, p *RetentionPolicy, audit *AuditEntry) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO retention_policies (name, description, retention_days, is_active, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			p.Name,
			p.Description,
			p.RetentionDays,
			boolToInt(p.IsActive),
			p.CreatedBy,
			formatTime(p.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting retention policy: %w", err)
		}

		if p.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading retention policy id: %w", err)
		}

		if audit != nil {
			audit.ResourceID = p.ID
			if err := insertAuditEntry(ctx, tx, audit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created retention policy", "id", p.ID, "name", p.Name)
	return nil
}

// ListRetentionPolicies returns active policies, newest first.
func (s *SQLiteStore) ListRetentionPolicies(ctx context.Context) ([]*RetentionPolicy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, retention_days, is_active, created_by, created_at
		FROM retention_policies
		WHERE is_active = 1
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying retention policies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var policies []*RetentionPolicy
	for rows.Next() {
		p, err := scanRetentionPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating retention policies: %w", err)
	}

	if policies == nil {
		policies = []*RetentionPolicy{}
	}
	return policies, nil
}

// UpdateRetentionPolicy applies a partial update. Nil fields are left
// unchanged. Returns ErrNotFound for an unknown policy.
func (s *SQLiteStore) UpdateRetentionPolicy(ctx context.Context, id int64, upd RetentionPolicyUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, name, description, retention_days, is_active, created_by, created_at
			FROM retention_policies WHERE id = ?
		`, id)
		p, err := scanRetentionPolicy(row)
		if err != nil {
			return err
		}

		if upd.Name != nil {
			p.Name = *upd.Name
		}
		if upd.Description != nil {
			p.Description = *upd.Description
		}
		if upd.RetentionDays != nil {
			p.RetentionDays = *upd.RetentionDays
		}
		if upd.IsActive != nil {
			p.IsActive = *upd.IsActive
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE retention_policies
			SET name = ?, description = ?, retention_days = ?, is_active = ?
			WHERE id = ?
		`, p.Name, p.Description, p.RetentionDays, boolToInt(p.IsActive), id); err != nil {
			return fmt.Errorf("updating retention policy: %w", err)
		}
		return nil
	})
}

// scanRetentionPolicy scans a policy row
func scanRetentionPolicy(sc scanner) (*RetentionPolicy, error) {
	var p RetentionPolicy
	var active int
	var createdAt string

	err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.RetentionDays, &active, &p.CreatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning retention policy: %w", err)
	}

	p.IsActive = active != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}
