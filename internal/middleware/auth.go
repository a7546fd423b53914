package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

// Authenticator resolves a bearer token to the calling user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate validates the bearer token and stores the principal on the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.principal(c) {
			return
		}
		c.Next()
	}
}

// principal resolves the caller onto the request context. It aborts with 401
// and reports false when the token is missing or rejected.
func (m *AuthMiddleware) principal(c *gin.Context) bool {
	token, ok := handler.BearerToken(c)
	if !ok {
		handler.RespondError(c, apperrors.Unauthorized("missing or malformed authorization header", nil))
		c.Abort()
		return false
	}

	principal, err := m.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		handler.RespondError(c, err)
		c.Abort()
		return false
	}

	logger := log.Ctx(c.Request.Context()).With().Str("user_id", principal.UserID.String()).Logger()
	ctx := model.WithPrincipal(logger.WithContext(c.Request.Context()), principal)
	c.Request = c.Request.WithContext(ctx)
	return true
}

// Require allows the request only when the principal's role may perform action.
func Require(action rbac.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !permitted(c, action) {
			return
		}
		c.Next()
	}
}

func permitted(c *gin.Context, action rbac.Action) bool {
	principal := model.PrincipalFrom(c.Request.Context())
	if principal == nil {
		handler.RespondError(c, apperrors.Unauthorized("authentication required", nil))
		c.Abort()
		return false
	}
	if !rbac.Allowed(principal.Role, action) {
		handler.RespondError(c, apperrors.Forbidden("insufficient permissions for "+string(action)))
		c.Abort()
		return false
	}
	return true
}

// Guard chains authentication and the policy check for a route. The rest of
// the chain runs only after both pass.
func (m *AuthMiddleware) Guard() handler.Guard {
	return func(action rbac.Action) gin.HandlerFunc {
		return func(c *gin.Context) {
			if !m.principal(c) || !permitted(c, action) {
				return
			}
			c.Next()
		}
	}
}
