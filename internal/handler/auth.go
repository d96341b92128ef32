package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/security/auth"
	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
	"github.com/aryan0dhankhar/insightdash/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	cookies     *auth.CookieStore
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, cookies *auth.CookieStore, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	user, err := h.authService.Register(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
// The session id travels back both in the signed cookie and inside the bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), body)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if err := h.cookies.Save(w, r, result.SessionID); err != nil {
		h.logger.Error("failed to write session cookie", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := h.authService.Logout(r.Context(), p.SessionID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.clearCookie(w, r)

	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// User handles GET /api/auth/user
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ChangePassword handles POST /api/auth/change-password.
// Every session of the user is revoked, including the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req ChangePasswordRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err = h.authService.ChangePassword(r.Context(), p.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.clearCookie(w, r)

	writeJSON(w, http.StatusOK, MessageResponse{Message: "password changed successfully"})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, r *http.Request) {
	if err := h.cookies.Clear(w, r); err != nil {
		h.logger.Warn("failed to clear session cookie", slog.String("error", err.Error()))
	}
}

// AdminHandler exposes account administration
type AdminHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

func NewAdminHandler(authService *service.AuthService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{authService: authService, logger: logger}
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// DeactivateUser handles DELETE /api/admin/users/{id}
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if p, _ := identity.FromContext(r.Context()); p.UserID == id {
		writeServiceError(w, r, h.logger, apperrors.ErrForbidden)
		return
	}

	if err := h.authService.DeactivateUser(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
