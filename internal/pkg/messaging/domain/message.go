package domain

import (
	"errors"
	"strings"
	"time"
)

// AttachmentRef points at an uploaded file consumable by a message.
type AttachmentRef struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Message is one entry in a conversation log. Server-confirmed messages carry
// ID; optimistic entries carry only LocalID until the send request resolves.
type Message struct {
	ID             string          `json:"id,omitempty"`
	LocalID        string          `json:"-"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	RecipientID    string          `json:"recipient_id"`
	Body           string          `json:"body"`
	Attachments    []AttachmentRef `json:"attachments,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Read           bool            `json:"read"`
}

// NewMessage validates and normalizes a message before it enters a log.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, errors.New("conversation_id and sender_id are required")
	}

	m.Body = strings.TrimSpace(m.Body)
	if m.Body == "" && len(m.Attachments) == 0 {
		return nil, errors.New("message must contain either body or attachments")
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	return &m, nil
}

// Confirmed reports whether the message has a server-assigned identity.
func (m Message) Confirmed() bool { return m.ID != "" }

// SortID is the identity used for ordering ties. Temporary ids only ever tie
// against other local entries; a confirmed counterpart supersedes the local
// entry before any cross-boundary comparison happens.
func (m Message) SortID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.LocalID
}

// Before establishes the total order inside a conversation log:
// creation timestamp first, id as tie-break.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.SortID() < other.SortID()
}
