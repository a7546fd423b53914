package therapytype

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
)

type CatalogService interface {
	CreateTherapyType(ctx context.Context, req *model.CreateTherapyTypeRequest) (*model.TherapyType, error)
	GetTherapyType(ctx context.Context, id uuid.UUID) (*model.TherapyType, error)
	ListTherapyTypes(ctx context.Context, filters *model.TherapyTypeFilters) ([]*model.TherapyType, error)
	UpdateTherapyType(ctx context.Context, id uuid.UUID, req *model.UpdateTherapyTypeRequest) (*model.TherapyType, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*model.TherapyType, error)
	Activate(ctx context.Context, id uuid.UUID) (*model.TherapyType, error)
}

type Handler struct {
	service CatalogService
}

func NewHandler(service CatalogService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	types := r.Group("/therapy-types")
	{
		types.GET("", guard(rbac.TherapyTypeRead), h.ListTherapyTypes)
		types.POST("", guard(rbac.TherapyTypeWrite), h.CreateTherapyType)
		types.GET("/:id", guard(rbac.TherapyTypeRead), h.GetTherapyType)
		types.PUT("/:id", guard(rbac.TherapyTypeWrite), h.UpdateTherapyType)
		types.POST("/:id/deactivate", guard(rbac.TherapyTypeWrite), h.Deactivate)
		types.POST("/:id/activate", guard(rbac.TherapyTypeWrite), h.Activate)
	}
}

func (h *Handler) CreateTherapyType(c *gin.Context) {
	var req model.CreateTherapyTypeRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	t, err := h.service.CreateTherapyType(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "therapy type created", t)
}

func (h *Handler) GetTherapyType(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	t, err := h.service.GetTherapyType(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", t)
}

func (h *Handler) ListTherapyTypes(c *gin.Context) {
	active, err := handler.QueryBool(c, "active")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	types, err := h.service.ListTherapyTypes(c.Request.Context(), &model.TherapyTypeFilters{
		Category: c.Query("category"),
		Active:   active,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", types)
}

func (h *Handler) UpdateTherapyType(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.UpdateTherapyTypeRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	t, err := h.service.UpdateTherapyType(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "therapy type updated", t)
}

func (h *Handler) Deactivate(c *gin.Context) {
	h.toggle(c, h.service.Deactivate, "therapy type deactivated")
}

func (h *Handler) Activate(c *gin.Context) {
	h.toggle(c, h.service.Activate, "therapy type activated")
}

func (h *Handler) toggle(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.TherapyType, error), message string) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	t, err := fn(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, message, t)
}
