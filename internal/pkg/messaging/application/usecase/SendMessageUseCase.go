package usecase

import (
	"context"
	"fmt"

	cacheport "github.com/5h1ro0o/recherche-auto-sub000/internal/infrastructure/cache/port"
	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
	repository "github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/persistence/repository/port"
)

// SendMessageInput carries the data needed to deliver a new message.
type SendMessageInput struct {
	SenderID    string
	RecipientID string
	Body        string
	Attachments []domain.AttachmentRef
}

// SendMessageUseCase persists a message and returns the confirmed record.
// The conversation id is derived from the participant pair; there is no
// separate conversation-creation step.
type SendMessageUseCase struct {
	Repo  repository.MessageRepository
	Cache cacheport.Cache // optional; history pages are invalidated on send
}

func NewSendMessageUseCase(repo repository.MessageRepository, cache cacheport.Cache) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Cache: cache}
}

// Execute validates, persists and returns the message with its server id
// and timestamp filled in.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*domain.Message, error) {
	if in.SenderID == "" || in.RecipientID == "" {
		return nil, fmt.Errorf("senderId and recipientId are required")
	}

	conv := domain.NewConversation(in.SenderID, in.RecipientID)
	msg, err := domain.NewMessage(domain.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		RecipientID:    in.RecipientID,
		Body:           in.Body,
		Attachments:    in.Attachments,
	})
	if err != nil {
		return nil, err
	}

	id, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id

	if uc.Cache != nil {
		_, _ = uc.Cache.Del(ctx, historyCacheKey(conv.ID))
	}
	return msg, nil
}
