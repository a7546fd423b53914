package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/security"
)

type UserServicer interface {
	CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error)
}

type Service struct {
	repo    repository.UserRepository
	hasher  security.PasswordHasher
	auditor audit.Recorder
	now     func() time.Time
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, auditor audit.Recorder) *Service {
	return &Service{
		repo:    repo,
		hasher:  hasher,
		auditor: auditor,
		now:     time.Now,
	}
}

func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, apperrors.Validation("invalid user", apperrors.FieldError{Field: "role", Message: "is not a known role"})
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation("invalid user", apperrors.FieldError{
				Field:   "password",
				Message: fmt.Sprintf("must be at least %d characters", security.MinPasswordLen),
			})
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		Base:         model.NewBase(s.now()),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityUser, u.ID, map[string]interface{}{
		"email": u.Email,
		"role":  u.Role,
	})
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error) {
	if filters.Role != "" && !filters.Role.Valid() {
		return nil, 0, apperrors.Validation("invalid filter", apperrors.FieldError{Field: "role", Message: "is not a known role"})
	}
	users, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is taken.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, req *model.CreateUserRequest) (bool, error) {
	_, err := s.repo.GetByEmail(ctx, strings.ToLower(req.Email))
	if err == nil {
		return false, nil
	}
	if !apperrors.IsCode(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}

	req.Role = model.RoleAdmin
	u, err := s.CreateUser(ctx, req)
	if err != nil {
		return false, err
	}
	log.Ctx(ctx).Info().Str("user_id", u.ID.String()).Str("email", u.Email).Msg("bootstrap admin created")
	return true, nil
}
