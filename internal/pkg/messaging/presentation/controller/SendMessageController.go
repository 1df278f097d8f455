package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cacheport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/cache/port"
	qport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/queue/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/realtime"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/application/task"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/application/usecase"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
	repository "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/port"
)

// SendMessageController handles the send endpoint (one controller per
// endpoint). The confirmed record goes back on the response; the recipient's
// live socket gets a new_message frame, falling back to the offline
// notification queue when no socket exists.
type SendMessageController struct {
	uc  *usecase.SendMessageUseCase
	hub *realtime.Hub
	q   qport.Client // optional
	log *zap.Logger
}

func NewSendMessageController(repo repository.MessageRepository, cache cacheport.Cache, hub *realtime.Hub, q qport.Client, log *zap.Logger) *SendMessageController {
	if log == nil {
		log = zap.NewNop()
	}
	return &SendMessageController{
		uc:  usecase.NewSendMessageUseCase(repo, cache),
		hub: hub,
		q:   q,
		log: log,
	}
}

type sendMessageRequest struct {
	RecipientID string                 `json:"recipient_id" binding:"required"`
	Body        string                 `json:"body"`
	Attachments []domain.AttachmentRef `json:"attachments"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		senderID := c.GetHeader("X-User-ID")
		if senderID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msg, err := h.uc.Execute(ctx, usecase.SendMessageInput{
			SenderID:    senderID,
			RecipientID: req.RecipientID,
			Body:        req.Body,
			Attachments: req.Attachments,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		h.fanOut(ctx, *msg)
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}

func (h *SendMessageController) fanOut(ctx context.Context, m domain.Message) {
	payload, err := newMessageFrame(m)
	if err != nil {
		h.log.Error("encode new_message frame", zap.Error(err))
		return
	}
	if h.hub.NotifyUser(m.RecipientID, payload) {
		return
	}
	if h.q == nil {
		return
	}
	if err := task.EnqueueNotifyOffline(ctx, h.q, m); err != nil {
		h.log.Warn("enqueue offline notification",
			zap.String("recipient", m.RecipientID), zap.Error(err))
	}
}
