package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresConversationRepository stores assistant conversations
type PostgresConversationRepository struct {
	t *ownedTable[domain.AIConversation]
}

func NewPostgresConversationRepository(db *sql.DB, logger *slog.Logger) *PostgresConversationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresConversationRepository{t: &ownedTable[domain.AIConversation]{
		db:      db,
		logger:  logger,
		table:   "ai_conversations",
		columns: `id, messages, context, user_id, created_at`,
		scan:    scanConversation,
	}}
}

func scanConversation(s scanner) (*domain.AIConversation, error) {
	c := &domain.AIConversation{}
	var messages, convContext []byte
	if err := s.Scan(&c.ID, &messages, &convContext, &c.UserID, &c.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	if c.Messages == nil {
		c.Messages = []domain.Message{}
	}
	c.Context = convContext
	return c, nil
}

func encodeMessages(messages []domain.Message) (string, error) {
	if messages == nil {
		messages = []domain.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("failed to encode messages: %w", err)
	}
	return string(raw), nil
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *domain.AIConversation) error {
	messages, err := encodeMessages(c.Messages)
	if err != nil {
		return err
	}
	query := `INSERT INTO ai_conversations (messages, context, user_id) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.t.queryRow(ctx, "create", query, []any{messages, document(c.Context), c.UserID}, &c.ID, &c.CreatedAt)
}

func (r *PostgresConversationRepository) Get(ctx context.Context, userID, id int64) (*domain.AIConversation, error) {
	return r.t.get(ctx, userID, id)
}

func (r *PostgresConversationRepository) List(ctx context.Context, userID int64) ([]*domain.AIConversation, error) {
	return r.t.list(ctx, userID)
}

func (r *PostgresConversationRepository) Update(ctx context.Context, c *domain.AIConversation) error {
	messages, err := encodeMessages(c.Messages)
	if err != nil {
		return err
	}
	query := `UPDATE ai_conversations SET messages = $1, context = $2 WHERE id = $3 AND user_id = $4 RETURNING created_at`
	return r.t.queryRow(ctx, "update", query, []any{messages, document(c.Context), c.ID, c.UserID}, &c.CreatedAt)
}

// AppendMessages adds turns to the end of the stored list in a single statement
func (r *PostgresConversationRepository) AppendMessages(ctx context.Context, userID, id int64, messages []domain.Message) (*domain.AIConversation, error) {
	raw, err := encodeMessages(messages)
	if err != nil {
		return nil, err
	}
	query := `UPDATE ai_conversations SET messages = messages || $1::jsonb
		WHERE id = $2 AND user_id = $3
		RETURNING ` + r.t.columns
	return r.t.queryItem(ctx, "append", query, raw, id, userID)
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, userID, id int64) error {
	return r.t.delete(ctx, userID, id)
}
