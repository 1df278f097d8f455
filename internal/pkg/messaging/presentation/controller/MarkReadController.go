package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	repository "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/port"
)

// MarkReadController persists read-state when a user opens a conversation.
type MarkReadController struct {
	repo repository.MessageRepository
}

func NewMarkReadController(repo repository.MessageRepository) *MarkReadController {
	return &MarkReadController{repo: repo}
}

func (h *MarkReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		readerID := c.GetHeader("X-User-ID")
		if readerID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
			return
		}
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.repo.MarkRead(ctx, conversationID, readerID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID})
	}
}
