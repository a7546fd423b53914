package record

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/internal/service/event"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

var errRecordClosed = apperrors.Conflict("clinical record is closed", nil)

type Service struct {
	records    repository.ClinicalRecordRepository
	patients   repository.PatientRepository
	anamneses  repository.AnamnesisRepository
	vitalSigns repository.VitalSignRepository
	auditor    audit.Recorder
	events     event.Emitter
	now        func() time.Time
}

func NewService(
	records repository.ClinicalRecordRepository,
	patients repository.PatientRepository,
	anamneses repository.AnamnesisRepository,
	vitalSigns repository.VitalSignRepository,
	auditor audit.Recorder,
	events event.Emitter,
) *Service {
	return &Service{
		records:    records,
		patients:   patients,
		anamneses:  anamneses,
		vitalSigns: vitalSigns,
		auditor:    auditor,
		events:     events,
		now:        time.Now,
	}
}

func (s *Service) CreateRecord(ctx context.Context, req *model.CreateClinicalRecordRequest) (*model.ClinicalRecord, error) {
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	now := s.now()
	rec := &model.ClinicalRecord{
		Base:                 model.NewBase(now),
		PatientID:            req.PatientID,
		AcceptanceDate:       now,
		Diagnosis:            req.Diagnosis,
		DiagnosticDetails:    req.DiagnosticDetails,
		Symptomatology:       req.Symptomatology,
		ObjectiveExamination: req.ObjectiveExamination,
		InstrumentalExams:    req.InstrumentalExams,
		ClinicalEvaluation:   req.ClinicalEvaluation,
		InterventionDate:     req.InterventionDate,
		InterventionDoctor:   req.InterventionDoctor,
		IsActive:             true,
	}
	if req.AcceptanceDate != nil {
		rec.AcceptanceDate = *req.AcceptanceDate
	}

	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create clinical record: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityClinicalRecord, rec.ID, rec)
	s.events.Emit(ctx, model.EventRecordCreated, rec.ID, recordPayload(rec))
	return rec, nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinical record: %w", err)
	}
	return rec, nil
}

// GetOpenRecord returns the record only when it still accepts writes.
func (s *Service) GetOpenRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsOpen() {
		return nil, errRecordClosed
	}
	return rec, nil
}

func (s *Service) UpdateRecord(ctx context.Context, id uuid.UUID, req *model.UpdateClinicalRecordRequest) (*model.ClinicalRecord, error) {
	rec, err := s.GetOpenRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(rec)
	rec.UpdatedAt = s.now()
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update clinical record: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionUpdate, model.AuditEntityClinicalRecord, rec.ID, req)
	return rec, nil
}

func (s *Service) ListRecords(ctx context.Context, filters *model.RecordFilters) ([]*model.ClinicalRecord, int, error) {
	if filters.PatientID != nil {
		if _, err := s.patients.Get(ctx, *filters.PatientID); err != nil {
			return nil, 0, fmt.Errorf("failed to get patient: %w", err)
		}
	}
	records, total, err := s.records.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clinical records: %w", err)
	}
	return records, total, nil
}

// CloseRecord closes the record; closing twice moves closedAt forward.
func (s *Service) CloseRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.Close(s.now())
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to close clinical record: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionClose, model.AuditEntityClinicalRecord, rec.ID, nil)
	s.events.Emit(ctx, model.EventRecordClosed, rec.ID, recordPayload(rec))
	return rec, nil
}

func (s *Service) ReopenRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.Reopen(s.now())
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to reopen clinical record: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionReopen, model.AuditEntityClinicalRecord, rec.ID, nil)
	s.events.Emit(ctx, model.EventRecordReopened, rec.ID, recordPayload(rec))
	return rec, nil
}

func (s *Service) AddAnamnesis(ctx context.Context, recordID uuid.UUID, req *model.CreateAnamnesisRequest) (*model.Anamnesis, error) {
	if _, err := s.GetOpenRecord(ctx, recordID); err != nil {
		return nil, err
	}

	now := s.now()
	a := &model.Anamnesis{
		Base:               model.NewBase(now),
		ClinicalRecordID:   recordID,
		RecordedAt:         now,
		ChiefComplaint:     req.ChiefComplaint,
		PresentIllness:     req.PresentIllness,
		PastMedicalHistory: req.PastMedicalHistory,
		Medications:        req.Medications,
		Allergies:          req.Allergies,
		FamilyHistory:      req.FamilyHistory,
		SocialHistory:      req.SocialHistory,
		Notes:              req.Notes,
	}
	if req.RecordedAt != nil {
		a.RecordedAt = *req.RecordedAt
	}

	if err := s.anamneses.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create anamnesis: %w", err)
	}
	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityAnamnesis, a.ID, nil)
	return a, nil
}

func (s *Service) ListAnamneses(ctx context.Context, recordID uuid.UUID) ([]*model.Anamnesis, error) {
	if _, err := s.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	return s.anamneses.ListByRecord(ctx, recordID)
}

func (s *Service) AddVitalSign(ctx context.Context, recordID uuid.UUID, req *model.CreateVitalSignRequest) (*model.VitalSign, error) {
	if _, err := s.GetOpenRecord(ctx, recordID); err != nil {
		return nil, err
	}

	now := s.now()
	v := &model.VitalSign{
		Base:             model.NewBase(now),
		ClinicalRecordID: recordID,
		MeasuredAt:       now,
		BloodPressure:    req.BloodPressure,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		Temperature:      req.Temperature,
		OxygenSaturation: req.OxygenSaturation,
		Weight:           req.Weight,
		Height:           req.Height,
		Notes:            req.Notes,
	}
	if req.MeasuredAt != nil {
		v.MeasuredAt = *req.MeasuredAt
	}

	if err := s.vitalSigns.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create vital sign: %w", err)
	}
	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityVitalSign, v.ID, nil)
	return v, nil
}

func (s *Service) ListVitalSigns(ctx context.Context, recordID uuid.UUID) ([]*model.VitalSign, error) {
	if _, err := s.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	return s.vitalSigns.ListByRecord(ctx, recordID)
}

func recordPayload(rec *model.ClinicalRecord) map[string]interface{} {
	return map[string]interface{}{
		"clinicalRecordId": rec.ID,
		"patientId":        rec.PatientID,
		"recordNumber":     rec.RecordNumber,
	}
}
