package unread

import (
	"sync"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// Aggregator owns the process-wide unread counters. It is the only component
// allowed to mutate them; surfaces such as the badge read Count and Total,
// and the conversation view calls MarkRead when it becomes active.
type Aggregator struct {
	selfID string

	mu     sync.Mutex
	counts map[string]int
	active string
}

// New constructs an Aggregator for the signed-in user.
func New(selfID string) *Aggregator {
	return &Aggregator{selfID: selfID, counts: make(map[string]int)}
}

// SetActive records which conversation surface is visibly open. Empty means
// none.
func (a *Aggregator) SetActive(conversationID string) {
	a.mu.Lock()
	a.active = conversationID
	a.mu.Unlock()
}

// OnLiveMessage bumps the owning conversation's counter, unless that
// conversation is the active surface or the message came from the local
// user's own other surface.
func (a *Aggregator) OnLiveMessage(m domain.Message) {
	if m.SenderID == a.selfID {
		return
	}
	a.mu.Lock()
	if m.ConversationID != a.active {
		a.counts[m.ConversationID]++
	}
	a.mu.Unlock()
}

// MarkRead zeroes the conversation's counter.
func (a *Aggregator) MarkRead(conversationID string) {
	a.mu.Lock()
	delete(a.counts, conversationID)
	a.mu.Unlock()
}

// Count returns the unread count for one conversation.
func (a *Aggregator) Count(conversationID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[conversationID]
}

// Total is the badge value: the sum over all conversations, recomputed on
// every call so it cannot drift from the per-conversation counts.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, n := range a.counts {
		total += n
	}
	return total
}
