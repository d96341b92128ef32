package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/domain"
	"github.com/aryan0dhankhar/insightdash/internal/observability/metrics"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
	"github.com/aryan0dhankhar/insightdash/internal/security/audit"
	"github.com/aryan0dhankhar/insightdash/internal/security/auth"
	"github.com/aryan0dhankhar/insightdash/internal/security/identity"
)

// AuthService handles registration, login and session resolution
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	tokens   *auth.TokenManager
	audit    *audit.Logger
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	tokens *auth.TokenManager,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		audit:    audit.NewLogger(logger),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

type registration struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult represents login response
type LoginResult struct {
	User      *domain.User `json:"user"`
	SessionID string       `json:"-"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	TokenType string       `json:"tokenType"`
}

// Register creates a new user account from a registration payload.
// The account is not logged in.
func (s *AuthService) Register(ctx context.Context, payload []byte) (*domain.User, error) {
	var req registration
	if err := domain.Registration.Decode(payload, &req); err != nil {
		metrics.ObserveValidationFailure(domain.UserEntity.Name())
		metrics.ObserveAuth("register", "invalid")
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			metrics.ObserveAuth("register", "invalid")
			return nil, &schema.ValidationError{
				Entity: domain.UserEntity.Name(),
				Fields: []schema.FieldError{{Field: "password", Reason: schema.ReasonConstraint, Message: "must be at most 72 bytes"}},
			}
		}
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	user := &domain.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Role:     domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		result := "error"
		if apperrors.IsConstraint(err, apperrors.UniqueViolation) {
			result = "conflict"
		}
		metrics.ObserveAuth("register", result)
		return nil, err
	}

	metrics.ObserveAuth("register", "success")
	s.audit.LogAuth(ctx, user.ID, "register", "success", "")
	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login verifies credentials and opens a session
func (s *AuthService) Login(ctx context.Context, payload []byte) (*LoginResult, error) {
	var req credentials
	if err := domain.Credentials.Decode(payload, &req); err != nil {
		metrics.ObserveValidationFailure(domain.UserEntity.Name())
		metrics.ObserveAuth("login", "invalid")
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Info("login attempt with unknown username", slog.String("username", req.Username))
			metrics.ObserveAuth("login", "failure")
			s.audit.LogAuth(ctx, 0, "login", "failed", "unknown username")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		s.logger.Info("login failed with wrong password", slog.String("username", req.Username))
		metrics.ObserveAuth("login", "failure")
		s.audit.LogAuth(ctx, user.ID, "login", "failed", "wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	session := &domain.Session{
		SID: uuid.NewString(),
		Sess: domain.SessionData{
			UserID:   user.ID,
			Username: user.Username,
			Role:     user.Role,
		},
		Expire: s.now().Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(session.SID, user.ID, user.Role, session.Expire)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	metrics.ObserveAuth("login", "success")
	s.audit.LogAuth(ctx, user.ID, "login", "success", "")
	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &LoginResult{
		User:      user,
		SessionID: session.SID,
		Token:     token,
		ExpiresAt: session.Expire,
		TokenType: "Bearer",
	}, nil
}

// Authenticate resolves a session id into the caller. Expired sessions and
// deactivated accounts are rejected with apperrors.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, sid string) (identity.Principal, error) {
	session, err := s.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return identity.Principal{}, apperrors.ErrUnauthenticated
		}
		return identity.Principal{}, err
	}

	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, sid); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("failed to drop expired session", slog.String("error", err.Error()))
		}
		return identity.Principal{}, apperrors.ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, session.Sess.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return identity.Principal{}, apperrors.ErrUnauthenticated
		}
		return identity.Principal{}, err
	}
	if !user.IsActive {
		return identity.Principal{}, apperrors.ErrUnauthenticated
	}

	return identity.Principal{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: session.SID,
	}, nil
}

// Logout ends a session. Unknown sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, sid string) error {
	if err := s.sessions.Delete(ctx, sid); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

// CurrentUser returns the account behind the caller's session
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword replaces the password and revokes every session of the user
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return &schema.ValidationError{
			Entity: domain.UserEntity.Name(),
			Fields: []schema.FieldError{{Field: "newPassword", Reason: schema.ReasonMissing, Message: "is required"}},
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !auth.CheckPassword(user.Password, oldPassword) {
		s.audit.LogAuth(ctx, userID, "change_password", "failed", "wrong password")
		return apperrors.ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return &schema.ValidationError{
				Entity: domain.UserEntity.Name(),
				Fields: []schema.FieldError{{Field: "newPassword", Reason: schema.ReasonConstraint, Message: "must be at most 72 bytes"}},
			}
		}
		s.logger.Error("failed to hash new password", slog.String("error", err.Error()))
		return fmt.Errorf("failed to change password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return err
	}

	s.audit.LogAuth(ctx, userID, "change_password", "success", "")
	s.logger.Info("user changed password", slog.Int64("user_id", userID))
	return nil
}

// ListUsers returns every account, for administrators
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// DeactivateUser disables an account and ends its sessions. Owned rows are kept.
func (s *AuthService) DeactivateUser(ctx context.Context, userID int64) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	s.audit.LogMutation(ctx, "deactivate", "user", userID, nil)
	return nil
}
