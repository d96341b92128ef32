package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
	"github.com/aryan0dhankhar/insightdash/internal/service"
)

// Authenticator resolves a session id into its caller
type Authenticator interface {
	Authenticate(ctx context.Context, sid string) (identity.Principal, error)
}

var errSessionEnded = errors.New("session ended")

// LiveHandler streams the caller's portfolio metrics over a websocket.
// The session is checked again before every frame.
type LiveHandler struct {
	dashboard      *service.DashboardService
	sessions       Authenticator
	interval       time.Duration
	allowedOrigins []string
	logger         *slog.Logger
}

func NewLiveHandler(dashboard *service.DashboardService, sessions Authenticator, interval time.Duration, allowedOrigins []string, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &LiveHandler{
		dashboard:      dashboard,
		sessions:       sessions,
		interval:       interval,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *LiveHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			if slices.Contains(h.allowedOrigins, origin) || slices.Contains(h.allowedOrigins, "*") {
				return true
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/dashboard. A metrics frame is sent on connect and then every interval.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	metrics.IncLiveSubscribers()
	defer metrics.DecLiveSubscribers()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the read pump only notices the client going away
	go func() {
		defer cancel()
		ws.SetReadDeadline(time.Time{})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.stream(ctx, ws, p.SessionID); err != nil {
		h.logger.Debug("live stream ended",
			slog.Int64("user_id", p.UserID),
			slog.String("reason", err.Error()),
		)
	}
}

func (h *LiveHandler) stream(ctx context.Context, ws *websocket.Conn, sid string) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if err := h.checkSession(ctx, sid); err != nil {
			if errors.Is(err, errSessionEnded) {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
					time.Now().Add(time.Second))
			}
			return err
		}

		m, err := h.dashboard.Metrics(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.logger.Error("failed to compute live metrics", slog.String("error", err.Error()))
		} else {
			ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := ws.WriteJSON(m); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkSession fails with errSessionEnded once the session is gone or the account deactivated.
// Storage failures keep the stream open.
func (h *LiveHandler) checkSession(ctx context.Context, sid string) error {
	if h.sessions == nil {
		return nil
	}
	_, err := h.sessions.Authenticate(ctx, sid)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return errSessionEnded
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		h.logger.Warn("live session check failed", slog.String("error", err.Error()))
		return nil
	}
}
