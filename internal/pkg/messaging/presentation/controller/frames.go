package controller

import (
	"encoding/json"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// wsFrame is the wire envelope for channel traffic, matching the client's
// frame shape: a type discriminator plus a payload.
type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func marshalFrame(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsFrame{Type: kind, Payload: raw})
}

func newMessageFrame(m domain.Message) ([]byte, error) {
	return marshalFrame(domain.EventNewMessage, domain.NewMessageEvent{Message: m})
}

func typingFrame(sig domain.TypingSignal) ([]byte, error) {
	return marshalFrame(domain.EventTypingStatus, sig)
}
