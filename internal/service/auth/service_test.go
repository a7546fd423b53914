package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/pkg/auth"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/security"
)

const password = "s3cret-pass"

func setup(t *testing.T) (*Service, *memory.Store, *model.User) {
	t.Helper()
	store := memory.NewStore()
	hasher := security.NewBcryptHasher(4)
	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	u := &model.User{Base: model.NewBase(time.Now()), Email: "doc@physio.local", PasswordHash: hash, FirstName: "Anna", LastName: "Verdi", Role: model.RoleDoctor, IsActive: true}
	require.NoError(t, store.Users().Create(context.Background(), u))

	jwt := auth.NewJWTManager(auth.Config{Secret: "test-secret", Issuer: "physio-api", TTL: time.Hour})
	return NewService(store.Users(), jwt, store.Tokens(), hasher, audit.NewService(store.Audit())), store, u
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, store, u := setup(t)
	ctx := model.WithRequestInfo(context.Background(), model.RequestInfo{IPAddress: "10.0.0.1", UserAgent: "test"})

	resp, err := svc.Login(ctx, "DOC@physio.local ", password)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, u.ID, resp.User.ID)

	p, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, p.Role)

	me, err := svc.Me(model.WithPrincipal(ctx, p))
	require.NoError(t, err)
	assert.Equal(t, "doc@physio.local", me.Email)
	require.NotNil(t, me.LastLoginAt)

	logs := store.AuditLogs()
	require.NotEmpty(t, logs)
	assert.Equal(t, model.AuditActionLogin, logs[0].Action)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	require.NotNil(t, logs[0].UserID)
}

func TestLoginWrongPasswordLocksAfterFiveAttempts(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < model.MaxFailedLogins-1; i++ {
		_, err := svc.Login(ctx, "doc@physio.local", "wrong-pass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := svc.Login(ctx, "doc@physio.local", "wrong-pass")
	assert.ErrorIs(t, err, ErrAccountLocked)

	_, err = svc.Login(ctx, "doc@physio.local", password)
	assert.ErrorIs(t, err, ErrAccountLocked)

	svc.now = func() time.Time { return time.Now().Add(model.LockoutDuration + time.Minute) }
	_, err = svc.Login(ctx, "doc@physio.local", password)
	assert.NoError(t, err)
}

func TestLoginUnknownOrInactive(t *testing.T) {
	svc, store, u := setup(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "nobody@physio.local", password)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	u.IsActive = false
	require.NoError(t, store.Users().Update(ctx, u))
	_, err = svc.Login(ctx, u.Email, password)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, "doc@physio.local", password)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, resp.Token))
	_, err = svc.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	assert.NoError(t, svc.Logout(ctx, "garbage"))
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Authenticate(context.Background(), "not-a-jwt")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}
