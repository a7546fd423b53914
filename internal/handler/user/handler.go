package user

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
	"github.com/jwalitptl/physio-api/internal/service/user"
)

type Handler struct {
	service user.UserServicer
}

func NewHandler(service user.UserServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	users := r.Group("/users", guard(rbac.UserAdmin))
	{
		users.POST("", h.CreateUser)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
	}
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	u, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "user created", u)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	u, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", u)
}

func (h *Handler) ListUsers(c *gin.Context) {
	filters := &model.UserFilters{
		Role: model.Role(c.Query("role")),
		Page: handler.PageParams(c),
	}

	users, total, err := h.service.ListUsers(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Paginated(c, "", users, filters.Page, total)
}
