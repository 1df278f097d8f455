package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cacheport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/cache/port"
	qport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/queue/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/realtime"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/presentation/controller"
	repository "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/port"
)

// Deps carries the infrastructure the messaging endpoints need. Cache and
// Queue are optional; nil disables history caching and offline notifications.
type Deps struct {
	Repo      repository.MessageRepository
	Cache     cacheport.Cache
	Queue     qport.Client
	Hub       *realtime.Hub
	UploadDir string
	MaxUpload int64
	Log       *zap.Logger
}

// RegisterRoutes registers messaging endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	sendCtl := controller.NewSendMessageController(d.Repo, d.Cache, d.Hub, d.Queue, d.Log)
	historyCtl := controller.NewGetHistoryController(d.Repo, d.Cache)
	readCtl := controller.NewMarkReadController(d.Repo)
	uploadCtl := controller.NewUploadController(d.UploadDir, d.MaxUpload)
	socketCtl := controller.NewSocketController(d.Hub, d.Log)

	// POST /api/v1/messages -> send a message to a recipient
	g.POST("/messages", sendCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages -> history page
	g.GET("/conversations/:conversationId/messages", historyCtl.Handle())

	// POST /api/v1/conversations/:conversationId/read -> persist read-state
	g.POST("/conversations/:conversationId/read", readCtl.Handle())

	// POST /api/v1/uploads -> store one attachment file
	g.POST("/uploads", uploadCtl.Handle())

	// GET /api/v1/ws -> websocket endpoint for realtime frames
	g.GET("/ws", socketCtl.Handle())
}
