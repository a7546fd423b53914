package record

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
	"github.com/jwalitptl/physio-api/internal/service/report"
)

// RecordService is the clinical-record surface used by the handler.
type RecordService interface {
	CreateRecord(ctx context.Context, req *model.CreateClinicalRecordRequest) (*model.ClinicalRecord, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error)
	UpdateRecord(ctx context.Context, id uuid.UUID, req *model.UpdateClinicalRecordRequest) (*model.ClinicalRecord, error)
	ListRecords(ctx context.Context, filters *model.RecordFilters) ([]*model.ClinicalRecord, int, error)
	CloseRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error)
	ReopenRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error)
	AddAnamnesis(ctx context.Context, recordID uuid.UUID, req *model.CreateAnamnesisRequest) (*model.Anamnesis, error)
	ListAnamneses(ctx context.Context, recordID uuid.UUID) ([]*model.Anamnesis, error)
	AddVitalSign(ctx context.Context, recordID uuid.UUID, req *model.CreateVitalSignRequest) (*model.VitalSign, error)
	ListVitalSigns(ctx context.Context, recordID uuid.UUID) ([]*model.VitalSign, error)
}

type Reporter interface {
	ClinicalRecordReport(ctx context.Context, recordID uuid.UUID) (*report.Document, error)
}

type Handler struct {
	service RecordService
	reports Reporter
}

func NewHandler(service RecordService, reports Reporter) *Handler {
	return &Handler{service: service, reports: reports}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	records := r.Group("/clinical-records")
	{
		records.POST("", guard(rbac.RecordWrite), h.CreateRecord)
		records.GET("", guard(rbac.RecordRead), h.ListRecords)
		records.GET("/:id", guard(rbac.RecordRead), h.GetRecord)
		records.PUT("/:id", guard(rbac.RecordWrite), h.UpdateRecord)
		records.POST("/:id/close", guard(rbac.RecordClose), h.CloseRecord)
		records.POST("/:id/reopen", guard(rbac.RecordClose), h.ReopenRecord)
		records.GET("/:id/anamnesis", guard(rbac.RecordRead), h.ListAnamneses)
		records.POST("/:id/anamnesis", guard(rbac.RecordWrite), h.AddAnamnesis)
		records.GET("/:id/vital-signs", guard(rbac.RecordRead), h.ListVitalSigns)
		records.POST("/:id/vital-signs", guard(rbac.RecordWrite), h.AddVitalSign)
		records.GET("/:id/report", guard(rbac.ReportRead), h.Report)
	}

	r.GET("/patients/:id/clinical-records", guard(rbac.RecordRead), h.ListPatientRecords)
}

func (h *Handler) CreateRecord(c *gin.Context) {
	var req model.CreateClinicalRecordRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	rec, err := h.service.CreateRecord(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "clinical record created", rec)
}

func (h *Handler) GetRecord(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	rec, err := h.service.GetRecord(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", rec)
}

func (h *Handler) UpdateRecord(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.UpdateClinicalRecordRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	rec, err := h.service.UpdateRecord(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "clinical record updated", rec)
}

func (h *Handler) ListRecords(c *gin.Context) {
	patientID, err := handler.QueryID(c, "patientId")
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	active, err := handler.QueryBool(c, "active")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.list(c, &model.RecordFilters{PatientID: patientID, Active: active, Page: handler.PageParams(c)})
}

func (h *Handler) ListPatientRecords(c *gin.Context) {
	patientID, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.list(c, &model.RecordFilters{PatientID: &patientID, Page: handler.PageParams(c)})
}

func (h *Handler) list(c *gin.Context, filters *model.RecordFilters) {
	records, total, err := h.service.ListRecords(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Paginated(c, "", records, filters.Page, total)
}

func (h *Handler) CloseRecord(c *gin.Context) {
	h.transition(c, h.service.CloseRecord, "clinical record closed")
}

func (h *Handler) ReopenRecord(c *gin.Context) {
	h.transition(c, h.service.ReopenRecord, "clinical record reopened")
}

func (h *Handler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.ClinicalRecord, error), message string) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	rec, err := fn(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, message, rec)
}

func (h *Handler) AddAnamnesis(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.CreateAnamnesisRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	a, err := h.service.AddAnamnesis(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "anamnesis recorded", a)
}

func (h *Handler) ListAnamneses(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	items, err := h.service.ListAnamneses(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", items)
}

func (h *Handler) AddVitalSign(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.CreateVitalSignRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	v, err := h.service.AddVitalSign(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "vital sign recorded", v)
}

func (h *Handler) ListVitalSigns(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	items, err := h.service.ListVitalSigns(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", items)
}

func (h *Handler) Report(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	doc, err := h.reports.ClinicalRecordReport(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.PDF(c, doc.Filename, doc.Content)
}
