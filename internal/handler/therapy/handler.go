package therapy

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
	"github.com/jwalitptl/physio-api/internal/service/report"
)

type TherapyService interface {
	CreateTherapy(ctx context.Context, req *model.CreateTherapyRequest) (*model.Therapy, error)
	GetTherapy(ctx context.Context, id uuid.UUID) (*model.TherapyDetail, error)
	ListTherapies(ctx context.Context, filters *model.TherapyFilters) ([]*model.Therapy, int, error)
	ListSessions(ctx context.Context, therapyID uuid.UUID) ([]*model.TherapySession, error)
	ScheduleSession(ctx context.Context, req *model.ScheduleSessionRequest) (*model.TherapySession, error)
	UpdateProgress(ctx context.Context, sessionID uuid.UUID, req *model.UpdateProgressRequest) (*model.TherapySession, error)
	CancelSession(ctx context.Context, sessionID uuid.UUID, reason string) (*model.TherapySession, error)
	RescheduleSession(ctx context.Context, sessionID uuid.UUID, req *model.RescheduleRequest) (*model.TherapySession, error)
	MarkMissed(ctx context.Context, sessionID uuid.UUID, reason string) (*model.TherapySession, error)
	CancelTherapy(ctx context.Context, id uuid.UUID, reason string) (*model.Therapy, error)
	DeleteTherapy(ctx context.Context, id uuid.UUID) error
	VASImprovement(ctx context.Context, id uuid.UUID) (*model.VASImprovement, error)
}

type Reporter interface {
	TherapyReport(ctx context.Context, therapyID uuid.UUID) (*report.Document, error)
	EmailTherapyReport(ctx context.Context, therapyID uuid.UUID, to string) error
}

type EmailReportRequest struct {
	To string `json:"to" binding:"required,email"`
}

type Handler struct {
	service TherapyService
	reports Reporter
}

func NewHandler(service TherapyService, reports Reporter) *Handler {
	return &Handler{service: service, reports: reports}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	therapies := r.Group("/therapies")
	{
		therapies.POST("", guard(rbac.TherapyWrite), h.CreateTherapy)
		therapies.GET("", guard(rbac.TherapyRead), h.ListTherapies)
		therapies.POST("/schedule-session", guard(rbac.SessionWrite), h.ScheduleSession)

		therapies.PUT("/sessions/:id/progress", guard(rbac.SessionWrite), h.UpdateProgress)
		therapies.POST("/sessions/:id/cancel", guard(rbac.SessionWrite), h.CancelSession)
		therapies.POST("/sessions/:id/reschedule", guard(rbac.SessionWrite), h.RescheduleSession)
		therapies.POST("/sessions/:id/missed", guard(rbac.SessionWrite), h.MarkMissed)

		therapies.GET("/:id", guard(rbac.TherapyRead), h.GetTherapy)
		therapies.DELETE("/:id", guard(rbac.TherapyWrite), h.DeleteTherapy)
		therapies.GET("/:id/sessions", guard(rbac.TherapyRead), h.ListSessions)
		therapies.POST("/:id/cancel", guard(rbac.TherapyWrite), h.CancelTherapy)
		therapies.GET("/:id/vas-improvement", guard(rbac.TherapyRead), h.VASImprovement)
		therapies.GET("/:id/report", guard(rbac.ReportRead), h.Report)
		therapies.POST("/:id/report/email", guard(rbac.ReportRead), h.EmailReport)
	}
}

func (h *Handler) CreateTherapy(c *gin.Context) {
	var req model.CreateTherapyRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	t, err := h.service.CreateTherapy(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "therapy created", t)
}

func (h *Handler) GetTherapy(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	t, err := h.service.GetTherapy(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", t)
}

func (h *Handler) ListTherapies(c *gin.Context) {
	recordID, err := handler.QueryID(c, "clinicalRecordId")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	filters := &model.TherapyFilters{
		ClinicalRecordID: recordID,
		Status:           model.TherapyStatus(c.Query("status")),
		Page:             handler.PageParams(c),
	}
	therapies, total, err := h.service.ListTherapies(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Paginated(c, "", therapies, filters.Page, total)
}

func (h *Handler) ListSessions(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", sessions)
}

func (h *Handler) ScheduleSession(c *gin.Context) {
	var req model.ScheduleSessionRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	s, err := h.service.ScheduleSession(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "session scheduled", s)
}

func (h *Handler) UpdateProgress(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.UpdateProgressRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	s, err := h.service.UpdateProgress(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "session updated", s)
}

func (h *Handler) CancelSession(c *gin.Context) {
	h.withReason(c, h.service.CancelSession, "session cancelled")
}

func (h *Handler) MarkMissed(c *gin.Context) {
	h.withReason(c, h.service.MarkMissed, "session marked as missed")
}

func (h *Handler) withReason(c *gin.Context, fn func(context.Context, uuid.UUID, string) (*model.TherapySession, error), message string) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.CancelRequest
	if err := handler.BindOptionalJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	s, err := fn(c.Request.Context(), id, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, message, s)
}

func (h *Handler) RescheduleSession(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.RescheduleRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	s, err := h.service.RescheduleSession(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "session rescheduled", s)
}

func (h *Handler) CancelTherapy(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.CancelRequest
	if err := handler.BindOptionalJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	t, err := h.service.CancelTherapy(c.Request.Context(), id, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "therapy cancelled", t)
}

func (h *Handler) DeleteTherapy(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.service.DeleteTherapy(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "therapy deleted", nil)
}

func (h *Handler) VASImprovement(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	v, err := h.service.VASImprovement(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", v)
}

func (h *Handler) Report(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	doc, err := h.reports.TherapyReport(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.PDF(c, doc.Filename, doc.Content)
}

func (h *Handler) EmailReport(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req EmailReportRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.reports.EmailTherapyReport(c.Request.Context(), id, req.To); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "report sent", gin.H{"to": req.To})
}
