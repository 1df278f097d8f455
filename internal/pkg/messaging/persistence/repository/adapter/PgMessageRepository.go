package adapter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// PgMessageRepository persists messages in Postgres via pgx. Attachments are
// stored as a JSON column; the schema lives in deploy/schema.sql.
type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) SaveMessage(ctx context.Context, m domain.Message) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgMessageRepository: nil pool")
	}

	var attachments []byte
	if len(m.Attachments) > 0 {
		b, err := json.Marshal(m.Attachments)
		if err != nil {
			return "", err
		}
		attachments = b
	}

	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messaging.message (
			conversation_id, sender_id, recipient_id, created_at, body, attachments, read
		) VALUES ($1::uuid, $2, $3, $4, $5, $6::jsonb, $7)
		RETURNING id::text
	`, m.ConversationID, m.SenderID, m.RecipientID, m.CreatedAt, m.Body, attachments, m.Read).Scan(&id)
	return id, err
}

func (r *PgMessageRepository) MessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]domain.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// Pages count back from the newest message; the inner query selects the
	// page descending, the outer one restores display order.
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, recipient_id, created_at, body, attachments, read
		FROM (
			SELECT id::text, conversation_id::text, sender_id, recipient_id, created_at, body, attachments, read
			FROM messaging.message
			WHERE conversation_id = $1::uuid
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3
		) page
		ORDER BY created_at ASC, id ASC
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			m           domain.Message
			attachments []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.CreatedAt, &m.Body, &attachments, &m.Read); err != nil {
			return nil, err
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgMessageRepository) MarkRead(ctx context.Context, conversationID string, readerID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgMessageRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE messaging.message
		SET read = TRUE
		WHERE conversation_id = $1::uuid AND recipient_id = $2 AND read = FALSE
	`, conversationID, readerID)
	return err
}
