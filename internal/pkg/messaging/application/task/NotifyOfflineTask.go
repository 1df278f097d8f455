package task

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	qport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/queue/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// NotifyOfflineTaskType is the queue task name for notifying a recipient who
// had no live socket when a message arrived.
const NotifyOfflineTaskType = "messaging:notify_offline"

// NotifyOfflineTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type NotifyOfflineTaskPayload struct {
	RecipientID    string `json:"recipientId"`
	SenderID       string `json:"senderId"`
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	Preview        string `json:"preview"`
}

const previewLimit = 120

// EnqueueNotifyOffline queues a notification for m's recipient. Deduplicated
// per message id so redelivery of the HTTP request cannot double-notify.
func EnqueueNotifyOffline(ctx context.Context, q qport.Client, m domain.Message) error {
	preview := m.Body
	if len(preview) > previewLimit {
		cut := previewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	payload := NotifyOfflineTaskPayload{
		RecipientID:    m.RecipientID,
		SenderID:       m.SenderID,
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Preview:        preview,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = q.Enqueue(ctx, qport.Task{Type: NotifyOfflineTaskType, Payload: b}, qport.EnqueueOption{
		Queue:     "notifications",
		MaxRetry:  5,
		UniqueTTL: time.Minute,
	})
	return err
}

// RegisterNotifyOfflineTask binds the task handler to the provided server.
// The handler is a stand-in for a push provider: it records the delivery so
// the pipeline is observable in development.
func RegisterNotifyOfflineTask(srv qport.Server, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	srv.Register(NotifyOfflineTaskType, func(ctx context.Context, t qport.Task) error {
		var p NotifyOfflineTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return err
		}
		log.Info("offline notification",
			zap.String("recipient", p.RecipientID),
			zap.String("conversation", p.ConversationID),
			zap.String("message", p.MessageID))
		return nil
	})
}
