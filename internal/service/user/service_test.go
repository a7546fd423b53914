package user

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository/memory"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/security"
)

func newService(store *memory.Store) *Service {
	return NewService(store.Users(), security.NewBcryptHasher(4), audit.NewService(store.Audit()))
}

func TestCreateUser(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, &model.CreateUserRequest{Email: "T@Physio.local", Password: "password1", FirstName: "Tea", LastName: "Neri", Role: model.RoleTherapist})
	require.NoError(t, err)
	assert.Equal(t, "t@physio.local", u.Email)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "password1", u.PasswordHash)

	_, err = svc.CreateUser(ctx, &model.CreateUserRequest{Email: "t@physio.local", Password: "password1", Role: model.RoleDoctor})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))

	_, err = svc.CreateUser(ctx, &model.CreateUserRequest{Email: "x@physio.local", Password: "short", Role: model.RoleDoctor})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	_, err = svc.CreateUser(ctx, &model.CreateUserRequest{Email: "y@physio.local", Password: "password1", Role: "NURSE"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestListUsersByRole(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()
	for i, r := range []model.Role{model.RoleDoctor, model.RoleDoctor, model.RoleReceptionist} {
		_, err := svc.CreateUser(ctx, &model.CreateUserRequest{Email: fmt.Sprintf("user%d@physio.local", i), Password: "password1", Role: r})
		require.NoError(t, err)
	}

	users, total, err := svc.ListUsers(ctx, &model.UserFilters{Role: model.RoleDoctor, Page: model.Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	svc := newService(store)
	ctx := context.Background()
	req := func() *model.CreateUserRequest {
		return &model.CreateUserRequest{Email: "admin@physio.local", Password: "admin-pass", FirstName: "Admin", LastName: "Clinic"}
	}

	created, err := svc.EnsureAdmin(ctx, req())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, req())
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := store.Users().GetByEmail(ctx, "admin@physio.local")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
}
