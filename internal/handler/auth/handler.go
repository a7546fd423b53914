package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Me(ctx context.Context) (*model.User, error)
	Logout(ctx context.Context, token string) error
}

// MeResponse is the current user with the actions their role allows.
type MeResponse struct {
	User        *model.User   `json:"user"`
	Permissions []rbac.Action `json:"permissions"`
}

type Handler struct {
	svc AuthService
}

func NewHandler(svc AuthService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the auth endpoints. Login and logout are public;
// authenticate protects /me.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", authenticate, h.Me)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "login successful", resp)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", MeResponse{User: user, Permissions: rbac.Permissions(user.Role)})
}

func (h *Handler) Logout(c *gin.Context) {
	if token, ok := handler.BearerToken(c); ok {
		if err := h.svc.Logout(c.Request.Context(), token); err != nil {
			handler.RespondError(c, err)
			return
		}
	}
	handler.OK(c, "logged out", nil)
}
