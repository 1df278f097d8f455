package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// newWSServer runs handle with the upgraded connection of each client.
func newWSServer(t *testing.T, handle func(ws *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(ws)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func sendFrame(t *testing.T, ws *websocket.Conn, kind string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(frame{Type: kind, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func TestChannel_DispatchOrder(t *testing.T) {
	const n = 10
	_, wsURL := newWSServer(t, func(ws *websocket.Conn) {
		for i := 0; i < n; i++ {
			sendFrame(t, ws, "new_message", map[string]int{"seq": i})
		}
	})

	ch, err := Dial(context.Background(), wsURL, "A", zap.NewNop())
	require.NoError(t, err)
	defer ch.Close()

	got := make(chan int, n)
	ch.Subscribe("new_message", func(raw json.RawMessage) {
		var p struct {
			Seq int `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(raw, &p))
		got <- p.Seq
	})

	for want := 0; want < n; want++ {
		select {
		case seq := <-got:
			assert.Equal(t, want, seq, "frames must arrive in delivery order")
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", want)
		}
	}
}

func TestChannel_MultipleSubscribers(t *testing.T) {
	_, wsURL := newWSServer(t, func(ws *websocket.Conn) {
		sendFrame(t, ws, "typing_status", map[string]bool{"is_typing": true})
	})

	ch, err := Dial(context.Background(), wsURL, "A", zap.NewNop())
	require.NoError(t, err)
	defer ch.Close()

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	ch.Subscribe("typing_status", func(json.RawMessage) { first <- struct{}{} })
	ch.Subscribe("typing_status", func(json.RawMessage) { second <- struct{}{} })

	for name, c := range map[string]chan struct{}{"first": first, "second": second} {
		select {
		case <-c:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber never ran", name)
		}
	}
}

func TestChannel_Unsubscribe(t *testing.T) {
	frames := make(chan struct{})
	_, wsURL := newWSServer(t, func(ws *websocket.Conn) {
		for range frames {
			sendFrame(t, ws, "new_message", map[string]string{})
		}
	})

	ch, err := Dial(context.Background(), wsURL, "A", zap.NewNop())
	require.NoError(t, err)
	defer ch.Close()

	kept := make(chan struct{}, 4)
	removedCalls := 0
	unsub := ch.Subscribe("new_message", func(json.RawMessage) { removedCalls++ })
	ch.Subscribe("new_message", func(json.RawMessage) { kept <- struct{}{} })

	frames <- struct{}{}
	<-kept
	firstRound := removedCalls

	unsub()
	frames <- struct{}{}
	<-kept
	close(frames)

	assert.Equal(t, 1, firstRound)
	assert.Equal(t, 1, removedCalls, "handler must not run after unsubscribe")
}

func TestChannel_Publish(t *testing.T) {
	received := make(chan frame, 1)
	_, wsURL := newWSServer(t, func(ws *websocket.Conn) {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if json.Unmarshal(data, &f) == nil {
			received <- f
		}
	})

	ch, err := Dial(context.Background(), wsURL, "A", zap.NewNop())
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Publish("typing_status", map[string]bool{"is_typing": true}))

	select {
	case f := <-received:
		assert.Equal(t, "typing_status", f.Type)
		assert.Contains(t, string(f.Payload), "is_typing")
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the published frame")
	}
}

func TestChannel_DropBecomesNoOp(t *testing.T) {
	_, wsURL := newWSServer(t, func(ws *websocket.Conn) {
		_ = ws.Close()
	})

	ch, err := Dial(context.Background(), wsURL, "A", zap.NewNop())
	require.NoError(t, err)

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after the connection dropped")
	}

	// outbound calls are silent no-ops once the channel is gone
	assert.NoError(t, ch.Publish("typing_status", map[string]bool{"is_typing": false}))
	ch.Close()
}

func TestChannel_DialRejectsBadURL(t *testing.T) {
	_, err := Dial(context.Background(), "http://\x7f", "A", zap.NewNop())
	require.Error(t, err)
}

func TestChannel_UserIDOnQuery(t *testing.T) {
	gotUser := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser <- r.URL.Query().Get("user_id")
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = ws.Close()
	}))
	t.Cleanup(srv.Close)

	ch, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), fmt.Sprintf("user-%d", 7), zap.NewNop())
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, "user-7", <-gotUser)
}
