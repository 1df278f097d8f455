package domain

import "time"

// Event kinds carried on the duplex channel. Inbound frames are a type
// discriminator plus a payload matching one of the shapes below; outbound
// frames use the same shapes, typing status only (messages travel over the
// REST send request, never the channel).
const (
	EventNewMessage   = "new_message"
	EventTypingStatus = "typing_status"
)

// NewMessageEvent is the payload of a new_message frame.
type NewMessageEvent struct {
	Message Message `json:"message"`
}

// TypingSignal is the payload of a typing_status frame. Ephemeral: never
// persisted, expires client-side via the presence auto-clear window.
type TypingSignal struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
	// RecipientID is a routing hint for the backend relay; receivers key off
	// ConversationID and ignore it.
	RecipientID string    `json:"recipient_id,omitempty"`
	ReceivedAt  time.Time `json:"-"`
}
