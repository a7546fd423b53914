package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/internal/service/event"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
	ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
}

type Service struct {
	repo    repository.PatientRepository
	auditor audit.Recorder
	events  event.Emitter
	now     func() time.Time
}

func NewService(repo repository.PatientRepository, auditor audit.Recorder, events event.Emitter) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		events:  events,
		now:     time.Now,
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		Base:                  model.NewBase(s.now()),
		FiscalCode:            strings.ToUpper(strings.TrimSpace(req.FiscalCode)),
		FirstName:             strings.TrimSpace(req.FirstName),
		LastName:              strings.TrimSpace(req.LastName),
		BirthDate:             req.BirthDate,
		BirthPlace:            req.BirthPlace,
		Gender:                req.Gender,
		Address:               req.Address,
		City:                  req.City,
		PostalCode:            req.PostalCode,
		Phone:                 req.Phone,
		Mobile:                req.Mobile,
		Email:                 req.Email,
		PrivacyConsent:        req.PrivacyConsent,
		MarketingConsent:      req.MarketingConsent,
		DataProcessingConsent: req.DataProcessingConsent,
		Notes:                 req.Notes,
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityPatient, patient.ID, patient)
	s.events.Emit(ctx, model.EventPatientCreated, patient.ID, map[string]interface{}{"patientId": patient.ID})
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	req.Apply(patient)
	patient.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionUpdate, model.AuditEntityPatient, patient.ID, req)
	return patient, nil
}

// DeletePatient soft-deletes; the row and its clinical history are kept.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	s.auditor.Log(ctx, model.AuditActionDelete, model.AuditEntityPatient, id, nil)
	return nil
}

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	patients, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}
