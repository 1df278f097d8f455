package repository

import (
	"context"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// MessageRepository defines persistence operations for the messaging domain.
// Conversation ids are derived from the participant pair, so there is no
// explicit conversation creation.
type MessageRepository interface {
	// SaveMessage persists m and returns the server-assigned id.
	SaveMessage(ctx context.Context, m domain.Message) (string, error)

	// MessagesByConversation returns one history page in ascending
	// (created_at, id) order. Pages count back from the newest message:
	// offset 0 holds the latest limit messages, offset limit the page
	// before that. Opening a long conversation always shows its tail.
	MessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]domain.Message, error)

	// MarkRead flags every message addressed to readerID in the
	// conversation as read.
	MarkRead(ctx context.Context, conversationID string, readerID string) error
}
