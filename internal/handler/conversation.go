package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/insightdash/internal/service"
)

// MessagesHandler asks the assistant a question inside a conversation
type MessagesHandler struct {
	assistant *service.AssistantService
	logger    *slog.Logger
}

func NewMessagesHandler(assistant *service.AssistantService, logger *slog.Logger) *MessagesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessagesHandler{assistant: assistant, logger: logger}
}

// ServeHTTP handles POST /api/ai/conversations/{id}/messages and returns the updated conversation
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	conv, err := h.assistant.Send(r.Context(), id, body)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
