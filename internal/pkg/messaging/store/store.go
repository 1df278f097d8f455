package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// HistoryFetcher is the external REST collaborator that pages historical
// messages. Its result is authoritative only at Load time.
type HistoryFetcher interface {
	History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

// Sender is the external REST collaborator that delivers a message. The
// confirmed record comes back on this request, not over the channel.
type Sender interface {
	Send(ctx context.Context, recipientID, text string, attachments []domain.AttachmentRef) (domain.Message, error)
}

// AttachmentDraft is a pending upload that resolves to a remote reference or
// a failure. Satisfied by *attachment.Draft.
type AttachmentDraft interface {
	Await(ctx context.Context) (domain.AttachmentRef, error)
}

// Draft is the recoverable content of a failed send: the user's typed text
// and the attachment drafts they had selected. Handed back so the view can
// re-edit instead of erasing.
type Draft struct {
	Text        string
	Attachments []AttachmentDraft
}

// SendError reports a failed send together with the rolled-back draft.
type SendError struct {
	Draft Draft
	Cause error
}

func (e *SendError) Error() string { return fmt.Sprintf("send failed: %v", e.Cause) }
func (e *SendError) Unwrap() error { return e.Cause }

// ErrFetch wraps history-load failures. The store holds no partial state
// after a failed Load.
var ErrFetch = fmt.Errorf("message store: history fetch failed")

// Store keeps the per-conversation ordered, deduplicated message log. It
// reconciles three sources into one view: the fetched history page, live
// channel events and local optimistic entries. Ordering within a
// conversation is total by (created_at, id).
type Store struct {
	selfID  string
	history HistoryFetcher
	sender  Sender
	log     *zap.Logger

	mu            sync.Mutex
	logs          map[string][]domain.Message
	conversations map[string]domain.Conversation
}

// New constructs a Store for the signed-in user.
func New(selfID string, history HistoryFetcher, sender Sender, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		selfID:        selfID,
		history:       history,
		sender:        sender,
		log:           log,
		logs:          make(map[string][]domain.Message),
		conversations: make(map[string]domain.Conversation),
	}
}

// Load seeds the conversation log from the history page. Messages already
// present (from live events that raced the fetch) are merged, not duplicated.
func (s *Store) Load(ctx context.Context, conversationID string, limit int) error {
	msgs, err := s.history.History(ctx, conversationID, limit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.mergeLocked(m)
	}
	return nil
}

// Send appends an optimistic entry immediately, waits for any referenced
// attachment drafts to resolve, then issues the send request. On success the
// optimistic entry is replaced in its slot by the confirmed message. On any
// failure the entry is rolled back and the original draft comes back inside
// a *SendError.
func (s *Store) Send(ctx context.Context, recipientID, text string, attachments []AttachmentDraft) (*domain.Message, error) {
	if text == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("message store: empty message")
	}

	conv := domain.NewConversation(s.selfID, recipientID)
	// Built directly rather than through domain.NewMessage: attachment
	// references may still be unresolved here, so the body-or-attachment
	// check cannot apply yet. The confirmed record carries the full refs.
	optimistic := domain.Message{
		LocalID:        uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       s.selfID,
		RecipientID:    recipientID,
		Body:           strings.TrimSpace(text),
		CreatedAt:      time.Now(),
	}
	// Drafts that already uploaded render on the pending entry right away.
	for _, d := range attachments {
		if res, ok := d.(interface {
			Resolved() (domain.AttachmentRef, bool)
		}); ok {
			if ref, ok := res.Resolved(); ok {
				optimistic.Attachments = append(optimistic.Attachments, ref)
			}
		}
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mergeLocked(optimistic)
	s.mu.Unlock()

	rollback := func(cause error) error {
		s.removeLocal(conv.ID, optimistic.LocalID)
		return &SendError{Draft: Draft{Text: text, Attachments: attachments}, Cause: cause}
	}

	refs := make([]domain.AttachmentRef, 0, len(attachments))
	for i, d := range attachments {
		ref, err := d.Await(ctx)
		if err != nil {
			return nil, rollback(fmt.Errorf("attachment %d: %w", i+1, err))
		}
		refs = append(refs, ref)
	}

	confirmed, err := s.sender.Send(ctx, recipientID, text, refs)
	if err != nil {
		return nil, rollback(err)
	}

	s.mu.Lock()
	s.removeLocalLocked(conv.ID, optimistic.LocalID)
	s.mergeLocked(confirmed)
	s.mu.Unlock()
	return &confirmed, nil
}

// OnLiveMessage merges a message pushed over the channel. The merge is
// idempotent on server id, so replayed or duplicate deliveries collapse to
// one entry. A conversation never loaded before is created on demand with
// this message as its seed.
func (s *Store) OnLiveMessage(m domain.Message) {
	if !m.Confirmed() {
		s.log.Warn("dropping live message without server id",
			zap.String("conversation", m.ConversationID))
		return
	}
	s.mu.Lock()
	s.mergeLocked(m)
	s.mu.Unlock()
}

// Messages returns a snapshot of the conversation log in display order.
func (s *Store) Messages(conversationID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[conversationID]
	out := make([]domain.Message, len(log))
	copy(out, log)
	return out
}

// Conversations returns the handles known to the store.
func (s *Store) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	return out
}

// MarkRead flags every message in the conversation as read locally. The
// Unread Aggregator owns the counters; this only keeps the log's read flags
// consistent with an opened conversation.
func (s *Store) MarkRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[conversationID]
	for i := range log {
		log[i].Read = true
	}
}

// mergeLocked inserts m at its (created_at, id) position, discarding it when
// a confirmed entry with the same server id already exists.
func (s *Store) mergeLocked(m domain.Message) {
	log := s.logs[m.ConversationID]

	if m.Confirmed() {
		for _, e := range log {
			if e.ID == m.ID {
				return
			}
		}
	}

	if _, ok := s.conversations[m.ConversationID]; !ok && m.SenderID != "" && m.RecipientID != "" {
		s.conversations[m.ConversationID] = domain.NewConversation(m.SenderID, m.RecipientID)
	}

	i := sort.Search(len(log), func(i int) bool { return m.Before(log[i]) })
	log = append(log, domain.Message{})
	copy(log[i+1:], log[i:])
	log[i] = m
	s.logs[m.ConversationID] = log
}

func (s *Store) removeLocal(conversationID, localID string) {
	s.mu.Lock()
	s.removeLocalLocked(conversationID, localID)
	s.mu.Unlock()
}

func (s *Store) removeLocalLocked(conversationID, localID string) {
	log := s.logs[conversationID]
	for i, e := range log {
		if e.LocalID == localID && !e.Confirmed() {
			s.logs[conversationID] = append(log[:i], log[i+1:]...)
			return
		}
	}
}
