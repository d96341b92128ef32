package audit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
)

// Logger writes audit records for state-changing actions
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("channel", "audit"))}
}

func (al *Logger) LogAction(ctx context.Context, userID int64, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", strconv.FormatInt(userID, 10)),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", identity.RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

// LogMutation records a create, update or delete against an owned resource
func (al *Logger) LogMutation(ctx context.Context, action, resource string, resourceID int64, err error) {
	var userID int64
	if p, ok := identity.FromContext(ctx); ok {
		userID = p.UserID
	}
	status, details := "success", ""
	if err != nil {
		status, details = "failed", err.Error()
	}
	al.LogAction(ctx, userID, action, resource, strconv.FormatInt(resourceID, 10), status, details)
}

func (al *Logger) LogAuth(ctx context.Context, userID int64, action, status, details string) {
	al.LogAction(ctx, userID, action, "session", "", status, details)
}

func (al *Logger) LogDenied(ctx context.Context, userID int64, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
