package handler

import (
	"net/http"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
)

// SchemaHandler publishes the entity shapes so clients type their requests from the same declarations
type SchemaHandler struct {
	docs []schema.EntityDoc
}

func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{docs: domain.Describe()}
}

// ServeHTTP handles GET /api/schema
func (h *SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.docs)
}
