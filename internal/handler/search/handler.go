package search

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
)

type Searcher interface {
	Search(ctx context.Context, query string) (*model.SearchResult, error)
}

type Handler struct {
	service Searcher
}

func NewHandler(service Searcher) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	r.GET("/search", guard(rbac.Search), h.Search)
}

func (h *Handler) Search(c *gin.Context) {
	res, err := h.service.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", res)
}
