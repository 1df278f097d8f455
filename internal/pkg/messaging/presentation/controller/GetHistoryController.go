package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	cacheport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/cache/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/application/usecase"
	repository "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/port"
)

// GetHistoryController serves one page of a conversation log.
type GetHistoryController struct {
	uc *usecase.GetHistoryUseCase
}

func NewGetHistoryController(repo repository.MessageRepository, cache cacheport.Cache) *GetHistoryController {
	return &GetHistoryController{uc: usecase.NewGetHistoryUseCase(repo, cache)}
}

func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		limit := 50
		offset := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.uc.Execute(ctx, usecase.GetHistoryInput{
			ConversationID: conversationID,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"limit":    limit,
			"offset":   offset,
			"count":    len(msgs),
		})
	}
}
