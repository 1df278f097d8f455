package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/realtime"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// SocketController handles the websocket endpoint carrying realtime
// messaging traffic. Inbound frames are typing_status only; messages travel
// over the REST send endpoint.
type SocketController struct {
	hub *realtime.Hub
	log *zap.Logger
}

func NewSocketController(hub *realtime.Hub, log *zap.Logger) *SocketController {
	if log == nil {
		log = zap.NewNop()
	}
	return &SocketController{hub: hub, log: log}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades the HTTP connection and relays frames until the client
// disconnects.
func (ctl *SocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just return.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.hub.Attach(conn)
		defer func() {
			ctl.hub.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var f wsFrame
			if err := json.Unmarshal(data, &f); err != nil {
				ctl.log.Debug("malformed inbound frame",
					zap.String("user", userID), zap.Error(err))
				continue
			}

			switch f.Type {
			case domain.EventTypingStatus:
				ctl.relayTyping(userID, f.Payload)
			default:
				ctl.log.Debug("ignoring unsupported frame type",
					zap.String("user", userID), zap.String("type", f.Type))
			}
		}
	}
}

// relayTyping forwards a typing signal to its recipient. The sender identity
// comes from the connection, never from the payload.
func (ctl *SocketController) relayTyping(userID string, payload json.RawMessage) {
	var sig domain.TypingSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		ctl.log.Debug("malformed typing payload", zap.String("user", userID), zap.Error(err))
		return
	}
	if sig.RecipientID == "" || sig.ConversationID == "" {
		return
	}
	sig.UserID = userID

	out, err := typingFrame(sig)
	if err != nil {
		return
	}
	ctl.hub.NotifyUser(sig.RecipientID, out)
}
