// ABOUTME: File metadata store methods
// ABOUTME: Only the metadata contract lives here; binary storage is external

package store

import (
	"context"
	"fmt"
	"time"
)

// CreateFile records metadata for an upload attached to a message.
func (s *SQLiteStore) CreateFile(ctx context.Context, f *File) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO files (message_id, filename, original_name, mime_type, size, encrypted_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		f.MessageID,
		f.Filename,
		f.OriginalName,
		f.MimeType,
		f.Size,
		f.EncryptedKey,
		formatTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting file: %w", err)
	}

	if f.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading file id: %w", err)
	}
	return nil
}

// ListMessageFiles returns file metadata attached to a message.
func (s *SQLiteStore) ListMessageFiles(ctx context.Context, messageID int64) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, filename, original_name, mime_type, size, encrypted_key, created_at
		FROM files
		WHERE message_id = ?
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		var f File
		var createdAt string
		if err := rows.Scan(&f.ID, &f.MessageID, &f.Filename, &f.OriginalName,
			&f.MimeType, &f.Size, &f.EncryptedKey, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}

	if files == nil {
		files = []*File{}
	}
	return files, nil
}
