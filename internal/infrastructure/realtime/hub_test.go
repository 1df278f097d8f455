package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialPair upgrades one server-side connection for userID and returns both
// halves so a test can drive the server Connection and observe the client.
func dialPair(t *testing.T, userID string) (*Connection, *websocket.Conn) {
	t.Helper()
	server := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		server <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewConnection(userID, <-server), client
}

func readText(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHub_NotifyUser(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	conn, client := dialPair(t, "A")
	hub.Attach(conn)

	require.True(t, hub.Online("A"))
	assert.False(t, hub.Online("B"))

	require.True(t, hub.NotifyUser("A", []byte(`{"type":"new_message"}`)))
	assert.Equal(t, `{"type":"new_message"}`, readText(t, client))

	assert.False(t, hub.NotifyUser("B", []byte(`{}`)), "offline users report undeliverable")
}

func TestHub_SecondSessionReplacesFirst(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	first, firstClient := dialPair(t, "A")
	hub.Attach(first)

	second, secondClient := dialPair(t, "A")
	hub.Attach(second)

	// the replaced socket is closed out from under its client
	require.NoError(t, firstClient.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := firstClient.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, 4001))

	require.True(t, hub.NotifyUser("A", []byte("hello")))
	assert.Equal(t, "hello", readText(t, secondClient))
}

func TestHub_DetachStaleSessionKeepsCurrent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	first, _ := dialPair(t, "A")
	hub.Attach(first)
	second, secondClient := dialPair(t, "A")
	hub.Attach(second)

	// the read loop of the replaced socket detaches late; the live session
	// must survive it
	hub.Detach(first)
	require.True(t, hub.Online("A"))

	hub.Detach(second)
	assert.False(t, hub.Online("A"))
	_ = secondClient.Close()
}
