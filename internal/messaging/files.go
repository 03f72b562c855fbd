// ABOUTME: File metadata attachment for messages
// ABOUTME: Stored filenames are opaque UUIDs; the original name is kept as metadata

package messaging

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/store"
)

// ErrEmptyFilename is returned when attaching a file without a name
var ErrEmptyFilename = errors.New("file name is empty")

// ErrFileTooLarge is returned when an attachment exceeds the configured size cap
var ErrFileTooLarge = errors.New("file exceeds the maximum allowed size")

// AttachFileInput describes an uploaded file's metadata.
type AttachFileInput struct {
	MessageID    int64
	OriginalName string
	MimeType     string
	Size         int64
}

// AttachFile records metadata for a file attached to a message. The
// stored filename is a fresh UUID with the original extension, so
// client-supplied names never reach the filesystem.
func (s *Service) AttachFile(ctx context.Context, user *store.User, in AttachFileInput) (*store.File, error) {
	if in.OriginalName == "" {
		return nil, ErrEmptyFilename
	}
	if in.Size > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	msg, err := s.store.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, user.ID); err != nil {
		return nil, err
	}

	f := &store.File{
		MessageID:    in.MessageID,
		Filename:     uuid.NewString() + filepath.Ext(in.OriginalName),
		OriginalName: in.OriginalName,
		MimeType:     in.MimeType,
		Size:         in.Size,
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("recording file metadata: %w", err)
	}
	return f, nil
}

// ListFiles returns metadata for files attached to a message.
func (s *Service) ListFiles(ctx context.Context, user *store.User, messageID int64) ([]*store.File, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, user.ID); err != nil {
		return nil, err
	}
	return s.store.ListMessageFiles(ctx, messageID)
}
