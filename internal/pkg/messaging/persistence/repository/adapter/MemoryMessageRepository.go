package adapter

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// MemoryMessageRepository keeps messages in process memory. Used by chatd
// when no DB_URL is configured and by use case tests.
type MemoryMessageRepository struct {
	mu   sync.Mutex
	logs map[string][]domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{logs: make(map[string][]domain.Message)}
}

func (r *MemoryMessageRepository) SaveMessage(_ context.Context, m domain.Message) (string, error) {
	m.ID = uuid.NewString()
	m.LocalID = ""

	r.mu.Lock()
	log := append(r.logs[m.ConversationID], m)
	sort.SliceStable(log, func(i, j int) bool { return log[i].Before(log[j]) })
	r.logs[m.ConversationID] = log
	r.mu.Unlock()
	return m.ID, nil
}

func (r *MemoryMessageRepository) MessagesByConversation(_ context.Context, conversationID string, limit int, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[conversationID]

	// Pages count back from the newest message.
	end := len(log) - offset
	if end <= 0 {
		return nil, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]domain.Message, end-start)
	copy(out, log[start:end])
	return out, nil
}

func (r *MemoryMessageRepository) MarkRead(_ context.Context, conversationID string, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[conversationID]
	for i := range log {
		if log[i].RecipientID == readerID {
			log[i].Read = true
		}
	}
	return nil
}
