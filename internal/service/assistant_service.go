package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
	"github.com/aryan0dhankhar/insightdash/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
	"github.com/aryan0dhankhar/insightdash/internal/security/audit"
)

// Assistant produces the next reply of a conversation
type Assistant interface {
	Reply(ctx context.Context, history []domain.Message, convContext json.RawMessage) (string, error)
}

// AssistantService appends user questions and assistant answers to conversations
type AssistantService struct {
	conversations domain.ConversationRepository
	assistant     Assistant
	breaker       *circuitbreaker.CircuitBreaker
	audit         *audit.Logger
	logger        *slog.Logger
	now           func() time.Time
}

// NewAssistantService wires the collaborator behind a circuit breaker.
// A nil assistant makes every Send fail with apperrors.ErrUnavailable.
func NewAssistantService(
	conversations domain.ConversationRepository,
	assistant Assistant,
	breaker *circuitbreaker.CircuitBreaker,
	logger *slog.Logger,
) *AssistantService {
	if logger == nil {
		logger = slog.Default()
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second)
	}
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("assistant circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &AssistantService{
		conversations: conversations,
		assistant:     assistant,
		breaker:       breaker,
		audit:         audit.NewLogger(logger),
		logger:        logger,
		now:           time.Now,
	}
}

type question struct {
	Content string `json:"content"`
}

func decodeQuestion(payload []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	var q question
	if err := dec.Decode(&q); err != nil {
		return "", &schema.ValidationError{
			Entity: domain.AIConversationEntity.Name(),
			Fields: []schema.FieldError{{Field: "content", Reason: schema.ReasonWrongType, Message: "payload must be {\"content\": string}"}},
		}
	}
	if strings.TrimSpace(q.Content) == "" {
		return "", &schema.ValidationError{
			Entity: domain.AIConversationEntity.Name(),
			Fields: []schema.FieldError{{Field: "content", Reason: schema.ReasonMissing, Message: "is required"}},
		}
	}
	return q.Content, nil
}

// Send asks the assistant about a conversation. Both turns are stored only
// when the assistant answers; collaborator errors are returned unchanged.
func (s *AssistantService) Send(ctx context.Context, conversationID int64, payload []byte) (*domain.AIConversation, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	content, err := decodeQuestion(payload)
	if err != nil {
		metrics.ObserveValidationFailure(domain.AIConversationEntity.Name())
		return nil, err
	}

	conv, err := s.conversations.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	if s.assistant == nil {
		metrics.ObserveAssistant("unavailable")
		return nil, fmt.Errorf("assistant is not configured: %w", apperrors.ErrUnavailable)
	}

	asked := domain.Message{
		Role:      "user",
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	history := append(conv.Messages[:len(conv.Messages):len(conv.Messages)], asked)

	var reply string
	err = s.breaker.Execute(func() error {
		var callErr error
		reply, callErr = s.assistant.Reply(ctx, history, conv.Context)
		return callErr
	}, func(err error) bool {
		return errors.Is(err, context.Canceled)
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		metrics.ObserveAssistant("rejected")
		return nil, fmt.Errorf("assistant is failing, try again later: %w", apperrors.ErrUnavailable)
	case err != nil:
		metrics.ObserveAssistant("error")
		s.logger.Warn("assistant reply failed",
			slog.Int64("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Upstream("assistant", err)
	}
	metrics.ObserveAssistant("success")

	answered := domain.Message{
		Role:      "assistant",
		Content:   reply,
		Timestamp: s.now().UTC(),
	}
	updated, err := s.conversations.AppendMessages(ctx, userID, conv.ID, []domain.Message{asked, answered})
	s.audit.LogMutation(ctx, "message", domain.AIConversationEntity.Table(), conv.ID, err)
	if err != nil {
		return nil, err
	}
	return updated, nil
}
