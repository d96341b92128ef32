package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// PostgresSessionRepository implements domain.SessionRepository using the sessions table
type PostgresSessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresSessionRepository(db *sql.DB, logger *slog.Logger) *PostgresSessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionRepository{db: db, logger: logger}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	payload, err := json.Marshal(session.Sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (sid, sess, expire) VALUES ($1, $2, $3)`,
		session.SID, string(payload), session.Expire,
	)
	if err != nil {
		r.logger.Error("failed to create session",
			slog.Int64("user_id", session.Sess.UserID),
			slog.String("error", err.Error()),
		)
		return wrap("create session", err)
	}
	return nil
}

// Get returns the session row regardless of expiry; callers decide whether it is still usable
func (r *PostgresSessionRepository) Get(ctx context.Context, sid string) (*domain.Session, error) {
	session := &domain.Session{}
	var payload []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT sid, sess, expire FROM sessions WHERE sid = $1`, sid,
	).Scan(&session.SID, &payload, &session.Expire)
	if err != nil {
		return nil, wrap("get session", err)
	}

	if err := json.Unmarshal(payload, &session.Sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

func (r *PostgresSessionRepository) Delete(ctx context.Context, sid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = $1`, sid); err != nil {
		return wrap("delete session", err)
	}
	return nil
}

func (r *PostgresSessionRepository) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE (sess->>'userId')::bigint = $1`, userID)
	if err != nil {
		return wrap("delete user sessions", err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry is not after now
func (r *PostgresSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expire <= $1`, now)
	if err != nil {
		return 0, wrap("delete expired sessions", err)
	}
	return result.RowsAffected()
}

func (r *PostgresSessionRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expire > $1`, now).Scan(&n); err != nil {
		return 0, wrap("count sessions", err)
	}
	return n, nil
}
