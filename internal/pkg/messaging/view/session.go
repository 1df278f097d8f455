package view

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/realtime"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/attachment"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/presence"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/store"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/unread"
)

// ReadMarker is the external REST collaborator that persists read-state
// server side when a conversation is opened.
type ReadMarker interface {
	MarkRead(ctx context.Context, peerID string) error
}

// Config carries the session tunables. Zero values pick the component
// defaults.
type Config struct {
	Presence          presence.Config
	MaxAttachmentSize int64
	HistoryPageSize   int
}

const defaultHistoryPageSize = 50

// Session is one signed-in user's messaging state: the shared channel, the
// message store, the presence controller, the unread counters and the upload
// pipeline. UI surfaces are constructed from it and coordinate only through
// these shared components, never with each other.
type Session struct {
	UserID string

	Channel     *realtime.Channel
	Store       *store.Store
	Presence    *presence.Controller
	Unread      *unread.Aggregator
	Attachments *attachment.Pipeline

	reads    ReadMarker
	pageSize int
	log      *zap.Logger
	unsubs   []func()
}

// NewSession wires the components onto an already-dialed channel. Each
// component subscribes independently to the event kinds it cares about;
// handlers run in arrival order on the channel's read loop.
func NewSession(ch *realtime.Channel, history store.HistoryFetcher, sender store.Sender,
	uploader attachment.Uploader, reads ReadMarker, cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = defaultHistoryPageSize
	}

	s := &Session{
		UserID:      ch.UserID,
		Channel:     ch,
		Store:       store.New(ch.UserID, history, sender, log),
		Presence:    presence.New(ch.UserID, ch, cfg.Presence, log),
		Unread:      unread.New(ch.UserID),
		Attachments: attachment.NewPipeline(uploader, cfg.MaxAttachmentSize, log),
		reads:       reads,
		pageSize:    cfg.HistoryPageSize,
		log:         log,
	}

	s.unsubs = append(s.unsubs,
		ch.Subscribe(domain.EventNewMessage, func(raw json.RawMessage) {
			var ev domain.NewMessageEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				log.Warn("malformed new_message payload", zap.Error(err))
				return
			}
			s.Store.OnLiveMessage(ev.Message)
			s.Unread.OnLiveMessage(ev.Message)
		}),
		ch.Subscribe(domain.EventTypingStatus, func(raw json.RawMessage) {
			var sig domain.TypingSignal
			if err := json.Unmarshal(raw, &sig); err != nil {
				log.Warn("malformed typing_status payload", zap.Error(err))
				return
			}
			sig.ReceivedAt = time.Now()
			s.Presence.HandleSignal(sig)
		}),
	)
	return s
}

// Open loads the conversation with peerID and makes it the active surface:
// history is seeded, the unread counter zeroes and the messages flip to read
// in the same step. A failed load leaves no partial state.
func (s *Session) Open(ctx context.Context, peerID string) (*Conversation, error) {
	convID := domain.ConversationID(s.UserID, peerID)
	if err := s.Store.Load(ctx, convID, s.pageSize); err != nil {
		return nil, err
	}

	s.Unread.SetActive(convID)
	s.Unread.MarkRead(convID)
	s.Store.MarkRead(convID)
	if err := s.reads.MarkRead(ctx, peerID); err != nil {
		// Server read-state is best effort; local state already moved on.
		s.log.Warn("mark read failed", zap.String("peer", peerID), zap.Error(err))
	}

	return &Conversation{session: s, peerID: peerID, convID: convID}, nil
}

// Close tears the session down: subscriptions removed, pipeline stopped,
// channel closed.
func (s *Session) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.Attachments.Close()
	s.Channel.Close()
}
