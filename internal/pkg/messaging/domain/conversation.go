package domain

import (
	"github.com/google/uuid"
)

// conversationNamespace seeds deterministic conversation ids. Fixed forever;
// changing it would re-key every existing conversation.
var conversationNamespace = uuid.MustParse("9b1dbb8a-54a6-4f28-9f3b-7d2c5a6e0d41")

// ConversationID derives the id for the conversation between two users.
// The derivation is order-independent so both participants compute the
// same id without a server round-trip.
func ConversationID(userA, userB string) string {
	a, b := userA, userB
	if b < a {
		a, b = b, a
	}
	return uuid.NewSHA1(conversationNamespace, []byte(a+":"+b)).String()
}

// Conversation is a handle on a 1:1 thread. Created lazily on first access
// and never explicitly destroyed client-side.
type Conversation struct {
	ID           string `json:"id"`
	ParticipantA string `json:"participant_a"`
	ParticipantB string `json:"participant_b"`
}

// NewConversation builds the handle for the pair, normalizing participant
// order to match the id derivation.
func NewConversation(userA, userB string) Conversation {
	a, b := userA, userB
	if b < a {
		a, b = b, a
	}
	return Conversation{ID: ConversationID(a, b), ParticipantA: a, ParticipantB: b}
}

// Peer returns the other participant from self's point of view.
func (c Conversation) Peer(self string) string {
	if c.ParticipantA == self {
		return c.ParticipantB
	}
	return c.ParticipantA
}
