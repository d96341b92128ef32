package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
	"github.com/aryan0dhankhar/insightdash/internal/schema"
	"github.com/aryan0dhankhar/insightdash/internal/security/auth"
)

func newTestAuthService() (*AuthService, *memUserRepo, *memSessionRepo) {
	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	s := NewAuthService(users, sessions, auth.NewTokenManager("secret", "insightdash"), time.Hour, nil)
	return s, users, sessions
}

func TestLoginBeforeRegisterThenRegisterAndLogin(t *testing.T) {
	s, users, _ := newTestAuthService()
	ctx := context.Background()
	creds := []byte(`{"username":"demo","password":"demo"}`)

	_, err := s.Login(ctx, creds)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	user, err := s.Register(ctx, []byte(`{"username":"demo","email":"demo@example.com","password":"demo"}`))
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Password)
	assert.NotEqual(t, "demo", stored.Password)
	assert.True(t, auth.CheckPassword(stored.Password, "demo"))

	res, err := s.Login(ctx, creds)
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "Bearer", res.TokenType)

	p, err := s.Authenticate(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, "demo", p.Username)
}

func TestRegisterValidation(t *testing.T) {
	s, _, _ := newTestAuthService()
	ctx := context.Background()

	_, err := s.Register(ctx, []byte(`{"username":"demo"}`))
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("password", schema.ReasonMissing))

	_, err = s.Register(ctx, []byte(`{"username":"demo","password":"x","role":"admin"}`))
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("role", schema.ReasonUnknownField))

	_, err = s.Register(ctx, []byte(`{"username":"demo","password":"`+strings.Repeat("p", 73)+`"}`))
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("password", schema.ReasonConstraint))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	s, users, _ := newTestAuthService()
	ctx := context.Background()

	first, err := s.Register(ctx, []byte(`{"username":"demo","password":"one"}`))
	require.NoError(t, err)

	_, err = s.Register(ctx, []byte(`{"username":"demo","password":"two"}`))
	assert.True(t, apperrors.IsConstraint(err, apperrors.UniqueViolation))

	stored, err := users.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(stored.Password, "one"))
}

func TestLoginWrongPassword(t *testing.T) {
	s, _, sessions := newTestAuthService()
	ctx := context.Background()

	_, err := s.Register(ctx, []byte(`{"username":"alice","password":"right"}`))
	require.NoError(t, err)

	_, err = s.Login(ctx, []byte(`{"username":"alice","password":"wrong"}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Empty(t, sessions.bySID)
}

func TestAuthenticateRejectsExpiredAndUnknownSessions(t *testing.T) {
	s, _, sessions := newTestAuthService()
	ctx := context.Background()

	_, err := s.Authenticate(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = s.Register(ctx, []byte(`{"username":"bob","password":"pw"}`))
	require.NoError(t, err)
	res, err := s.Login(ctx, []byte(`{"username":"bob","password":"pw"}`))
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Authenticate(ctx, res.SessionID)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	assert.NotContains(t, sessions.bySID, res.SessionID)
}

func TestLogoutAndDeactivate(t *testing.T) {
	s, _, _ := newTestAuthService()
	ctx := context.Background()

	u, err := s.Register(ctx, []byte(`{"username":"carol","password":"pw"}`))
	require.NoError(t, err)
	res, err := s.Login(ctx, []byte(`{"username":"carol","password":"pw"}`))
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx, res.SessionID))
	require.NoError(t, s.Logout(ctx, res.SessionID))
	_, err = s.Authenticate(ctx, res.SessionID)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	res, err = s.Login(ctx, []byte(`{"username":"carol","password":"pw"}`))
	require.NoError(t, err)
	require.NoError(t, s.DeactivateUser(ctx, u.ID))
	_, err = s.Authenticate(ctx, res.SessionID)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = s.Login(ctx, []byte(`{"username":"carol","password":"pw"}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	s, _, sessions := newTestAuthService()
	ctx := context.Background()

	u, err := s.Register(ctx, []byte(`{"username":"dave","password":"old"}`))
	require.NoError(t, err)
	_, err = s.Login(ctx, []byte(`{"username":"dave","password":"old"}`))
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangePassword(ctx, u.ID, "nope", "new"), apperrors.ErrInvalidCredentials)
	require.NoError(t, s.ChangePassword(ctx, u.ID, "old", "new"))
	assert.Empty(t, sessions.bySID)

	_, err = s.Login(ctx, []byte(`{"username":"dave","password":"old"}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = s.Login(ctx, []byte(`{"username":"dave","password":"new"}`))
	assert.NoError(t, err)
}
