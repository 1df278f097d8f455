package realtime

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler receives the raw payload of one inbound frame. Handlers run
// synchronously on the read loop, so every subscriber of a kind observes
// frames in arrival order.
type Handler func(payload json.RawMessage)

// frame is the wire envelope for both directions of the channel.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Channel owns the single duplex websocket of a signed-in session. UI
// surfaces hold subscriptions, never the connection: mounting and unmounting
// a surface adds and removes handlers without touching the socket.
//
// There is no automatic reconnection. When the connection drops, Publish
// becomes a no-op, inbound dispatch stops, and Done is closed so the
// embedding application can decide whether to rebuild the session.
type Channel struct {
	UserID string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *zap.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

type subscription struct {
	id int
	h  Handler
}

// Dial opens the session channel for userID against the backend websocket
// endpoint. Exactly one Channel should exist per signed-in session.
func Dial(ctx context.Context, endpoint, userID string, log *zap.Logger) (*Channel, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}
	c := &Channel{
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
		log:    log,
		subs:   make(map[string][]subscription),
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// Subscribe registers a handler for every inbound frame of the given kind.
// The returned function removes the subscription; it is safe to call after
// the channel has closed.
func (c *Channel) Subscribe(kind string, h Handler) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[kind] = append(c.subs[kind], subscription{id: id, h: h})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.subs[kind]
		for i, s := range list {
			if s.id == id {
				c.subs[kind] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish sends an outbound frame and returns immediately. The server does
// not acknowledge presence frames, so there is nothing to wait for. After the
// connection drops, Publish silently does nothing.
func (c *Channel) Publish(kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame{Type: kind, Payload: raw})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		c.log.Debug("channel closed, dropping outbound frame", zap.String("kind", kind))
		return nil
	case c.send <- data:
		return nil
	default:
		c.log.Warn("channel send buffer full, dropping outbound frame", zap.String("kind", kind))
		return nil
	}
}

// Done is closed once the connection is gone, whether by Close or by a
// transport failure.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close tears the connection down. Idempotent.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Channel) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Warn("channel read failed", zap.Error(err))
			}
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn("discarding malformed inbound frame", zap.Error(err))
			continue
		}
		c.dispatch(f)
	}
}

// dispatch invokes every subscriber of the frame's kind, in subscription
// order, synchronously. No reordering or batching happens here.
func (c *Channel) dispatch(f frame) {
	c.mu.RLock()
	list := make([]subscription, len(c.subs[f.Type]))
	copy(list, c.subs[f.Type])
	c.mu.RUnlock()

	for _, s := range list {
		s.h(f.Payload)
	}
}

func (c *Channel) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
