package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

type fakeHistory struct {
	msgs []domain.Message
	err  error
}

func (f *fakeHistory) History(_ context.Context, _ string, _ int) ([]domain.Message, error) {
	return f.msgs, f.err
}

type fakeSender struct {
	confirm func(recipientID, text string, refs []domain.AttachmentRef) (domain.Message, error)
}

func (f *fakeSender) Send(_ context.Context, recipientID, text string, refs []domain.AttachmentRef) (domain.Message, error) {
	return f.confirm(recipientID, text, refs)
}

type fakeDraft struct {
	ref domain.AttachmentRef
	err error
}

func (f *fakeDraft) Await(_ context.Context) (domain.AttachmentRef, error) {
	return f.ref, f.err
}

// resolvedDraft mimics a draft whose upload already finished.
type resolvedDraft struct {
	ref domain.AttachmentRef
}

func (f *resolvedDraft) Await(_ context.Context) (domain.AttachmentRef, error) {
	return f.ref, nil
}

func (f *resolvedDraft) Resolved() (domain.AttachmentRef, bool) {
	return f.ref, true
}

func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func msg(id, conv, sender, recipient string, t time.Time) domain.Message {
	return domain.Message{
		ID: id, ConversationID: conv, SenderID: sender, RecipientID: recipient,
		Body: "m-" + id, CreatedAt: t,
	}
}

func requireOrdered(t *testing.T, log []domain.Message) {
	t.Helper()
	seen := map[string]bool{}
	for i := range log {
		key := log[i].SortID()
		require.False(t, seen[key], "duplicate id %s", key)
		seen[key] = true
		if i > 0 {
			require.True(t, log[i-1].Before(log[i]),
				"log out of order at %d: %s !< %s", i, log[i-1].SortID(), log[i].SortID())
		}
	}
}

func TestStore_LoadAndLiveMerge(t *testing.T) {
	conv := domain.ConversationID("A", "B")

	t.Run("history seeds the log in order", func(t *testing.T) {
		h := &fakeHistory{msgs: []domain.Message{
			msg("m2", conv, "B", "A", at(20)),
			msg("m1", conv, "A", "B", at(10)),
		}}
		s := New("A", h, &fakeSender{}, zap.NewNop())
		require.NoError(t, s.Load(context.Background(), conv, 50))

		log := s.Messages(conv)
		require.Len(t, log, 2)
		assert.Equal(t, "m1", log[0].ID)
		assert.Equal(t, "m2", log[1].ID)
	})

	t.Run("live event inserts at timestamp position", func(t *testing.T) {
		h := &fakeHistory{msgs: []domain.Message{
			msg("m1", conv, "A", "B", at(10)),
			msg("m3", conv, "A", "B", at(30)),
		}}
		s := New("A", h, &fakeSender{}, zap.NewNop())
		require.NoError(t, s.Load(context.Background(), conv, 50))

		s.OnLiveMessage(msg("m2", conv, "B", "A", at(20)))
		log := s.Messages(conv)
		require.Len(t, log, 3)
		assert.Equal(t, []string{"m1", "m2", "m3"}, []string{log[0].ID, log[1].ID, log[2].ID})
		requireOrdered(t, log)
	})

	t.Run("duplicate delivery is idempotent", func(t *testing.T) {
		s := New("A", &fakeHistory{}, &fakeSender{}, zap.NewNop())
		m := msg("m1", conv, "B", "A", at(10))
		s.OnLiveMessage(m)
		s.OnLiveMessage(m)
		require.Len(t, s.Messages(conv), 1)
	})

	t.Run("unknown conversation is created on demand", func(t *testing.T) {
		s := New("A", &fakeHistory{}, &fakeSender{}, zap.NewNop())
		other := domain.ConversationID("A", "C")
		s.OnLiveMessage(msg("x1", other, "C", "A", at(5)))

		require.Len(t, s.Messages(other), 1)
		require.Len(t, s.Conversations(), 1)
		assert.Equal(t, other, s.Conversations()[0].ID)
	})

	t.Run("failed fetch leaves no partial state", func(t *testing.T) {
		h := &fakeHistory{err: errors.New("boom")}
		s := New("A", h, &fakeSender{}, zap.NewNop())
		err := s.Load(context.Background(), conv, 50)
		require.ErrorIs(t, err, ErrFetch)
		assert.Empty(t, s.Messages(conv))
	})
}

func TestStore_Send(t *testing.T) {
	conv := domain.ConversationID("A", "B")

	t.Run("optimistic entry is replaced by the confirmed message", func(t *testing.T) {
		sender := &fakeSender{confirm: func(recipient, text string, refs []domain.AttachmentRef) (domain.Message, error) {
			return msg("m9", conv, "A", recipient, at(100)), nil
		}}
		s := New("A", &fakeHistory{}, sender, zap.NewNop())

		confirmed, err := s.Send(context.Background(), "B", "hello", nil)
		require.NoError(t, err)
		assert.Equal(t, "m9", confirmed.ID)

		log := s.Messages(conv)
		require.Len(t, log, 1)
		assert.Equal(t, "m9", log[0].ID)
		assert.Empty(t, log[0].LocalID)
	})

	t.Run("optimistic entry shows already-uploaded attachments", func(t *testing.T) {
		ref := domain.AttachmentRef{URL: "/uploads/a", Filename: "a.jpg", Size: 3}
		var pending []domain.Message
		sender := &fakeSender{}
		s := New("A", &fakeHistory{}, sender, zap.NewNop())
		sender.confirm = func(recipient, text string, refs []domain.AttachmentRef) (domain.Message, error) {
			// snapshot the log while the send is still in flight
			pending = s.Messages(conv)
			return msg("m9", conv, "A", recipient, at(100)), nil
		}

		_, err := s.Send(context.Background(), "B", "look", []AttachmentDraft{&resolvedDraft{ref: ref}})
		require.NoError(t, err)

		require.Len(t, pending, 1)
		assert.False(t, pending[0].Confirmed())
		require.Len(t, pending[0].Attachments, 1)
		assert.Equal(t, ref, pending[0].Attachments[0])
	})

	t.Run("failed send rolls back and returns the draft", func(t *testing.T) {
		sendErr := errors.New("503")
		sender := &fakeSender{confirm: func(string, string, []domain.AttachmentRef) (domain.Message, error) {
			return domain.Message{}, sendErr
		}}
		s := New("A", &fakeHistory{}, sender, zap.NewNop())
		draft := &fakeDraft{ref: domain.AttachmentRef{URL: "/uploads/a", Filename: "a.jpg", Size: 3}}

		_, err := s.Send(context.Background(), "B", "hello", []AttachmentDraft{draft})
		var se *SendError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "hello", se.Draft.Text)
		require.Len(t, se.Draft.Attachments, 1)
		assert.ErrorIs(t, err, sendErr)
		assert.Empty(t, s.Messages(conv), "optimistic entry must be rolled back")
	})

	t.Run("failed attachment aborts the send", func(t *testing.T) {
		called := false
		sender := &fakeSender{confirm: func(string, string, []domain.AttachmentRef) (domain.Message, error) {
			called = true
			return domain.Message{}, nil
		}}
		s := New("A", &fakeHistory{}, sender, zap.NewNop())
		bad := &fakeDraft{err: errors.New("upload failed")}

		_, err := s.Send(context.Background(), "B", "hi", []AttachmentDraft{bad})
		var se *SendError
		require.ErrorAs(t, err, &se)
		assert.False(t, called, "send request must not fire with a failed attachment")
		assert.Empty(t, s.Messages(conv))
	})

	t.Run("live echo of the confirmed id yields one entry", func(t *testing.T) {
		echo := msg("m9", conv, "A", "B", at(100))
		sender := &fakeSender{confirm: func(string, string, []domain.AttachmentRef) (domain.Message, error) {
			return echo, nil
		}}
		s := New("A", &fakeHistory{}, sender, zap.NewNop())

		_, err := s.Send(context.Background(), "B", "hello", nil)
		require.NoError(t, err)
		s.OnLiveMessage(echo)
		require.Len(t, s.Messages(conv), 1)
	})

	t.Run("echo arriving before confirmation still yields one entry", func(t *testing.T) {
		echo := msg("m9", conv, "A", "B", at(100))
		s := New("A", &fakeHistory{}, nil, zap.NewNop())
		s.sender = &fakeSender{confirm: func(string, string, []domain.AttachmentRef) (domain.Message, error) {
			// the push beats the HTTP response
			s.OnLiveMessage(echo)
			return echo, nil
		}}

		_, err := s.Send(context.Background(), "B", "hello", nil)
		require.NoError(t, err)

		log := s.Messages(conv)
		require.Len(t, log, 1)
		assert.Equal(t, "m9", log[0].ID)
	})
}

// Interleaving scenario: A loads [m1@10], B pushes m2@20 while A sends at 21.
func TestStore_InterleavingScenario(t *testing.T) {
	conv := domain.ConversationID("A", "B")
	h := &fakeHistory{msgs: []domain.Message{msg("m1", conv, "B", "A", at(10))}}

	var s *Store
	sender := &fakeSender{confirm: func(recipient, text string, _ []domain.AttachmentRef) (domain.Message, error) {
		// live push lands while the send request is in flight
		s.OnLiveMessage(msg("m2", conv, "B", "A", at(20)))
		return msg("m3", conv, "A", recipient, at(21)), nil
	}}
	s = New("A", h, sender, zap.NewNop())

	require.NoError(t, s.Load(context.Background(), conv, 50))
	_, err := s.Send(context.Background(), "B", "hi", nil)
	require.NoError(t, err)

	log := s.Messages(conv)
	require.Len(t, log, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{log[0].ID, log[1].ID, log[2].ID})
	for _, m := range log {
		assert.True(t, m.Confirmed(), "no temporary id may remain")
	}
	requireOrdered(t, log)
}

func TestStore_MarkRead(t *testing.T) {
	conv := domain.ConversationID("A", "B")
	s := New("A", &fakeHistory{}, &fakeSender{}, zap.NewNop())
	s.OnLiveMessage(msg("m1", conv, "B", "A", at(10)))
	s.OnLiveMessage(msg("m2", conv, "B", "A", at(20)))

	s.MarkRead(conv)
	for _, m := range s.Messages(conv) {
		assert.True(t, m.Read)
	}
}
