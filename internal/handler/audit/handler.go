package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

// exportLimit caps the rows written by a single CSV export.
const exportLimit = 10000

type AuditService interface {
	List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error)
}

type Handler struct {
	service AuditService
	now     func() time.Time
}

func NewHandler(service AuditService) *Handler {
	return &Handler{service: service, now: time.Now}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	logs := r.Group("/audit-logs", guard(rbac.AuditRead))
	{
		logs.GET("", h.ListLogs)
		logs.GET("/export", h.ExportLogs)
	}
}

func (h *Handler) ListLogs(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	filters.Page = handler.PageParams(c)

	logs, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Paginated(c, "", logs, filters.Page, total)
}

func (h *Handler) ExportLogs(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	filters.Page = model.Page{Page: 1, Limit: exportLimit}

	logs, _, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.csv", h.now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"ID", "User ID", "Action", "Entity Type", "Entity ID", "IP Address", "Created At"})
	for _, l := range logs {
		userID := ""
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		_ = w.Write([]string{
			l.ID.String(),
			userID,
			l.Action,
			l.EntityType,
			l.EntityID.String(),
			l.IPAddress,
			l.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
}

func parseFilters(c *gin.Context) (*model.AuditFilters, error) {
	userID, err := handler.QueryID(c, "userId")
	if err != nil {
		return nil, err
	}
	entityID, err := handler.QueryID(c, "entityId")
	if err != nil {
		return nil, err
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return nil, err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return nil, err
	}
	return &model.AuditFilters{
		UserID:     userID,
		EntityType: c.Query("entityType"),
		EntityID:   entityID,
		Action:     c.Query("action"),
		From:       from,
		To:         to,
	}, nil
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.Validation("invalid query", apperrors.FieldError{Field: name, Message: "must be an RFC 3339 timestamp"})
	}
	return &t, nil
}
