package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/service/patient"
	"github.com/jwalitptl/physio-api/internal/service/rbac"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	patients := r.Group("/patients")
	{
		patients.POST("", guard(rbac.PatientWrite), h.CreatePatient)
		patients.GET("", guard(rbac.PatientRead), h.ListPatients)
		patients.GET("/:id", guard(rbac.PatientRead), h.GetPatient)
		patients.PUT("/:id", guard(rbac.PatientWrite), h.UpdatePatient)
		patients.DELETE("/:id", guard(rbac.PatientDelete), h.DeletePatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	p, err := h.service.CreatePatient(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, "patient created", p)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	p, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "", p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	var req model.UpdatePatientRequest
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	p, err := h.service.UpdatePatient(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "patient updated", p)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if err := h.service.DeletePatient(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, "patient deleted", nil)
}

func (h *Handler) ListPatients(c *gin.Context) {
	filters := &model.PatientFilters{
		Search: c.Query("search"),
		Page:   handler.PageParams(c),
	}

	patients, total, err := h.service.ListPatients(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Paginated(c, "", patients, filters.Page, total)
}
