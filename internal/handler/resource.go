package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/insightdash/internal/security"
	"github.com/aryan0dhankhar/insightdash/internal/service"
)

// Gate wraps a handler with the session and permission checks for perm
type Gate func(perm security.Permission, h http.Handler) http.Handler

// ResourceHandler serves the CRUD routes of one owned entity
type ResourceHandler[T any, P service.Owned[T]] struct {
	svc    *service.ResourceService[T, P]
	logger *slog.Logger
}

func NewResourceHandler[T any, P service.Owned[T]](svc *service.ResourceService[T, P], logger *slog.Logger) *ResourceHandler[T, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceHandler[T, P]{svc: svc, logger: logger.With(slog.String("entity", svc.Entity().Name()))}
}

// Register mounts the collection at path and the item routes at path/{id}
func (h *ResourceHandler[T, P]) Register(mux *http.ServeMux, path string, gate Gate) {
	item := path + "/{id}"
	mux.Handle("GET "+path, gate(security.PermManageResources, http.HandlerFunc(h.List)))
	mux.Handle("POST "+path, gate(security.PermManageResources, http.HandlerFunc(h.Create)))
	mux.Handle("GET "+item, gate(security.PermManageResources, http.HandlerFunc(h.Get)))
	mux.Handle("PUT "+item, gate(security.PermManageResources, http.HandlerFunc(h.Replace)))
	mux.Handle("PATCH "+item, gate(security.PermManageResources, http.HandlerFunc(h.Patch)))
	mux.Handle("DELETE "+item, gate(security.PermManageResources, http.HandlerFunc(h.Delete)))
}

func (h *ResourceHandler[T, P]) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []*T{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ResourceHandler[T, P]) Create(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	item, err := h.svc.Create(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ResourceHandler[T, P]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ResourceHandler[T, P]) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.svc.Replace)
}

func (h *ResourceHandler[T, P]) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.svc.Patch)
}

func (h *ResourceHandler[T, P]) update(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int64, payload []byte) (*T, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	item, err := apply(r.Context(), id, body)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ResourceHandler[T, P]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
