package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// Publisher pushes outbound typing frames onto the duplex channel.
// Satisfied by *realtime.Channel.
type Publisher interface {
	Publish(kind string, payload any) error
}

// Config holds the two presence windows. The source keeps them equal; they
// are separate knobs here but default to the same value.
type Config struct {
	// DebounceWindow is the silence after the last keystroke before an
	// explicit "stopped typing" is published.
	DebounceWindow time.Duration
	// AutoClearWindow bounds how long an inbound "is typing" flag may live
	// without refresh. Guards against lost false events (peer closed the
	// tab), so the indicator can never stick forever.
	AutoClearWindow time.Duration
}

const defaultWindow = 3 * time.Second

// Controller runs the typing state machines, one per conversation and
// direction. Outbound: idle -> signaling on keystroke with a debounced
// return to idle. Inbound: a time-boxed peer flag refreshed by repeated
// true signals and cleared by an explicit false or by expiry.
type Controller struct {
	selfID string
	pub    Publisher
	cfg    Config
	log    *zap.Logger

	mu       sync.Mutex
	outbound map[string]*outboundState
	inbound  map[string]*inboundState
}

type outboundState struct {
	signaling bool
	timer     *time.Timer
}

type inboundState struct {
	typing bool
	timer  *time.Timer
}

// New constructs a Controller for the signed-in user.
func New(selfID string, pub Publisher, cfg Config, log *zap.Logger) *Controller {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = defaultWindow
	}
	if cfg.AutoClearWindow <= 0 {
		cfg.AutoClearWindow = defaultWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		selfID:   selfID,
		pub:      pub,
		cfg:      cfg,
		log:      log,
		outbound: make(map[string]*outboundState),
		inbound:  make(map[string]*inboundState),
	}
}

// Keystroke records local typing activity toward peerID. The first
// keystroke while idle publishes true; every keystroke rearms the single
// debounce timer.
func (c *Controller) Keystroke(peerID string) {
	conversationID := domain.ConversationID(c.selfID, peerID)

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.outbound[conversationID]
	if st == nil {
		st = &outboundState{}
		c.outbound[conversationID] = st
	}

	if !st.signaling {
		st.signaling = true
		c.publish(conversationID, peerID, true)
	}

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(c.cfg.DebounceWindow, func() {
		c.expireOutbound(conversationID, peerID)
	})
}

// MessageSent forces an immediate return to idle with an explicit false, so
// the peer's indicator clears synchronously with message delivery rather
// than waiting out the debounce window.
func (c *Controller) MessageSent(peerID string) {
	conversationID := domain.ConversationID(c.selfID, peerID)

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.outbound[conversationID]
	if st == nil || !st.signaling {
		return
	}
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.signaling = false
	c.publish(conversationID, peerID, false)
}

// HandleSignal reacts to an inbound typing frame. Signals from self are
// ignored. Signals for any conversation are accepted; whether they are
// visible is the view's concern (only the active conversation renders its
// indicator).
func (c *Controller) HandleSignal(sig domain.TypingSignal) {
	if sig.UserID == c.selfID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.inbound[sig.ConversationID]
	if st == nil {
		st = &inboundState{}
		c.inbound[sig.ConversationID] = st
	}

	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}

	if !sig.IsTyping {
		st.typing = false
		return
	}

	st.typing = true
	convID := sig.ConversationID
	st.timer = time.AfterFunc(c.cfg.AutoClearWindow, func() {
		c.expireInbound(convID)
	})
}

// PeerTyping reports whether the peer in the conversation is currently
// flagged as typing.
func (c *Controller) PeerTyping(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.inbound[conversationID]
	return st != nil && st.typing
}

func (c *Controller) expireOutbound(conversationID, peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.outbound[conversationID]
	if st == nil || !st.signaling {
		return
	}
	st.signaling = false
	st.timer = nil
	c.publish(conversationID, peerID, false)
}

func (c *Controller) expireInbound(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.inbound[conversationID]
	if st == nil {
		return
	}
	st.typing = false
	st.timer = nil
}

func (c *Controller) publish(conversationID, peerID string, isTyping bool) {
	err := c.pub.Publish(domain.EventTypingStatus, domain.TypingSignal{
		ConversationID: conversationID,
		UserID:         c.selfID,
		IsTyping:       isTyping,
		RecipientID:    peerID,
	})
	if err != nil {
		c.log.Debug("typing publish failed",
			zap.String("conversation", conversationID), zap.Error(err))
	}
}
