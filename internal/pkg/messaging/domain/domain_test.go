package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationID(t *testing.T) {
	t.Run("order independent", func(t *testing.T) {
		assert.Equal(t, ConversationID("alice", "bob"), ConversationID("bob", "alice"))
	})

	t.Run("distinct pairs get distinct ids", func(t *testing.T) {
		assert.NotEqual(t, ConversationID("alice", "bob"), ConversationID("alice", "carol"))
	})

	t.Run("stable across calls", func(t *testing.T) {
		// both participants derive the id locally; it must never drift
		assert.Equal(t, ConversationID("alice", "bob"), ConversationID("alice", "bob"))
	})
}

func TestConversationPeer(t *testing.T) {
	conv := NewConversation("bob", "alice")
	assert.Equal(t, "bob", conv.Peer("alice"))
	assert.Equal(t, "alice", conv.Peer("bob"))
}

func TestNewMessage(t *testing.T) {
	base := Message{ConversationID: "c", SenderID: "A", RecipientID: "B"}

	t.Run("trims body", func(t *testing.T) {
		m := base
		m.Body = "  hello  "
		got, err := NewMessage(m)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Body)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		m := base
		m.Body = "   "
		_, err := NewMessage(m)
		require.Error(t, err)
	})

	t.Run("attachments alone suffice", func(t *testing.T) {
		m := base
		m.Attachments = []AttachmentRef{{URL: "/uploads/a.png", Filename: "a.png", Size: 1}}
		_, err := NewMessage(m)
		require.NoError(t, err)
	})

	t.Run("stamps a timestamp when missing", func(t *testing.T) {
		m := base
		m.Body = "hi"
		got, err := NewMessage(m)
		require.NoError(t, err)
		assert.False(t, got.CreatedAt.IsZero())
	})
}

func TestMessageOrdering(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("timestamp dominates", func(t *testing.T) {
		early := Message{ID: "z", CreatedAt: t0}
		late := Message{ID: "a", CreatedAt: t0.Add(time.Second)}
		assert.True(t, early.Before(late))
		assert.False(t, late.Before(early))
	})

	t.Run("id breaks timestamp ties", func(t *testing.T) {
		a := Message{ID: "aaa", CreatedAt: t0}
		b := Message{ID: "bbb", CreatedAt: t0}
		assert.True(t, a.Before(b))
		assert.False(t, b.Before(a))
	})

	t.Run("local id stands in until confirmation", func(t *testing.T) {
		m := Message{LocalID: "local-1", CreatedAt: t0}
		assert.Equal(t, "local-1", m.SortID())
		assert.False(t, m.Confirmed())

		m.ID = "srv-1"
		assert.Equal(t, "srv-1", m.SortID())
		assert.True(t, m.Confirmed())
	})
}
