package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cacheport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/cache/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
	repository "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/port"
)

// historyCacheTTL bounds staleness for the first history page. Sends
// invalidate the key, so the TTL only matters for cross-instance writes.
const historyCacheTTL = 30 * time.Second

func historyCacheKey(conversationID string) string {
	return "messaging:history:" + conversationID
}

// GetHistoryInput selects one page of a conversation log.
type GetHistoryInput struct {
	ConversationID string
	Limit          int
	Offset         int
}

// GetHistoryUseCase serves history pages, caching the first page briefly.
type GetHistoryUseCase struct {
	Repo  repository.MessageRepository
	Cache cacheport.Cache // optional
}

func NewGetHistoryUseCase(repo repository.MessageRepository, cache cacheport.Cache) *GetHistoryUseCase {
	return &GetHistoryUseCase{Repo: repo, Cache: cache}
}

// Execute returns messages in ascending (created_at, id) order.
func (uc *GetHistoryUseCase) Execute(ctx context.Context, in GetHistoryInput) ([]domain.Message, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("conversationId is required")
	}

	cacheable := uc.Cache != nil && in.Offset == 0
	if cacheable {
		if raw, err := uc.Cache.Get(ctx, historyCacheKey(in.ConversationID)); err == nil {
			var msgs []domain.Message
			if json.Unmarshal([]byte(raw), &msgs) == nil && len(msgs) >= in.Limit {
				// The cached page is the newest messages ascending, so its
				// trailing limit entries are exactly the repository's
				// offset-0 page for that limit.
				if in.Limit > 0 && len(msgs) > in.Limit {
					msgs = msgs[len(msgs)-in.Limit:]
				}
				return msgs, nil
			}
		} else if !errors.Is(err, cacheport.ErrMiss) {
			// Cache trouble never fails the fetch; fall through to the repo.
			cacheable = false
		}
	}

	msgs, err := uc.Repo.MessagesByConversation(ctx, in.ConversationID, in.Limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if cacheable {
		if raw, err := json.Marshal(msgs); err == nil {
			_ = uc.Cache.Set(ctx, historyCacheKey(in.ConversationID), string(raw), historyCacheTTL)
		}
	}
	return msgs, nil
}
