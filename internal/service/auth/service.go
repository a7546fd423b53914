package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/pkg/auth"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/security"
)

var (
	ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials", nil)
	ErrAccountLocked      = apperrors.Unauthorized("account is locked, please try again later", nil)
	ErrTokenRevoked       = apperrors.Unauthorized("token has been revoked", nil)
)

type Service struct {
	users   repository.UserRepository
	tokens  auth.TokenService
	revoked repository.TokenStore
	hasher  security.PasswordHasher
	auditor audit.Recorder
	now     func() time.Time
}

func NewService(
	users repository.UserRepository,
	tokens auth.TokenService,
	revoked repository.TokenStore,
	hasher security.PasswordHasher,
	auditor audit.Recorder,
) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		revoked: revoked,
		hasher:  hasher,
		auditor: auditor,
		now:     time.Now,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	now := s.now()
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if user.IsLocked(now) {
		return nil, ErrAccountLocked
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		user.RegisterFailedLogin(now)
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update login attempts: %w", err)
		}
		if user.IsLocked(now) {
			log.Ctx(ctx).Warn().Str("user_id", user.ID.String()).Msg("account locked after repeated failed logins")
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	user.RegisterLogin(now)
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update login timestamp: %w", err)
	}

	token, claims, err := s.tokens.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	ctx = model.WithPrincipal(ctx, principalFromClaims(claims))
	s.auditor.Log(ctx, model.AuditActionLogin, model.AuditEntityUser, user.ID, nil)

	return &model.LoginResponse{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

// Authenticate turns a bearer token into the calling principal.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.Unauthorized("token has expired", err)
		}
		return nil, apperrors.Unauthorized("invalid token", err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return principalFromClaims(claims), nil
}

func (s *Service) Me(ctx context.Context) (*model.User, error) {
	p := model.PrincipalFrom(ctx)
	if p == nil {
		return nil, apperrors.Unauthorized("", nil)
	}
	user, err := s.users.Get(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Logout revokes the caller's token until it would have expired. Calling it
// without a valid token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}

	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	ctx = model.WithPrincipal(ctx, principalFromClaims(claims))
	s.auditor.Log(ctx, model.AuditActionLogout, model.AuditEntityUser, claims.UserID, nil)
	return nil
}

func principalFromClaims(c *auth.Claims) *model.Principal {
	return &model.Principal{
		UserID:    c.UserID,
		Email:     c.Email,
		Role:      model.Role(c.Role),
		TokenID:   c.TokenID,
		ExpiresAt: c.ExpiresAt,
	}
}
