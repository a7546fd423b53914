package report

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/email"
	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/report"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/pkg/metrics"
)

// Document is a rendered report ready to be served or mailed.
type Document struct {
	Filename string
	Content  []byte
}

type Service struct {
	patients     repository.PatientRepository
	records      repository.ClinicalRecordRepository
	anamneses    repository.AnamnesisRepository
	vitalSigns   repository.VitalSignRepository
	therapies    repository.TherapyRepository
	therapyTypes repository.TherapyTypeRepository
	renderer     *report.Renderer
	mailer       email.Service
	metrics      *metrics.Metrics
}

type Deps struct {
	Patients     repository.PatientRepository
	Records      repository.ClinicalRecordRepository
	Anamneses    repository.AnamnesisRepository
	VitalSigns   repository.VitalSignRepository
	Therapies    repository.TherapyRepository
	TherapyTypes repository.TherapyTypeRepository
	Renderer     *report.Renderer
	Mailer       email.Service
	Metrics      *metrics.Metrics
}

func NewService(d Deps) *Service {
	return &Service{
		patients:     d.Patients,
		records:      d.Records,
		anamneses:    d.Anamneses,
		vitalSigns:   d.VitalSigns,
		therapies:    d.Therapies,
		therapyTypes: d.TherapyTypes,
		renderer:     d.Renderer,
		mailer:       d.Mailer,
		metrics:      d.Metrics,
	}
}

func (s *Service) TherapyReport(ctx context.Context, therapyID uuid.UUID) (*Document, error) {
	t, err := s.therapies.Get(ctx, therapyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get therapy: %w", err)
	}
	sessions, err := s.therapies.ListSessions(ctx, therapyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	rec, patient, err := s.recordWithPatient(ctx, t.ClinicalRecordID)
	if err != nil {
		return nil, err
	}
	tt, err := s.therapyTypes.Get(ctx, t.TherapyTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get therapy type: %w", err)
	}

	content, err := s.renderer.Therapy(&report.TherapyReport{
		Patient:     patient,
		Record:      rec,
		TherapyType: tt,
		Therapy:     &model.TherapyDetail{Therapy: t, Sessions: sessions},
		VAS:         model.ComputeVASImprovement(t.ID, sessions),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReportsGenerated.WithLabelValues("therapy").Inc()
	return &Document{
		Filename: fmt.Sprintf("terapia-%s-%s.pdf", rec.RecordNumber, t.Modality),
		Content:  content,
	}, nil
}

func (s *Service) ClinicalRecordReport(ctx context.Context, recordID uuid.UUID) (*Document, error) {
	rec, patient, err := s.recordWithPatient(ctx, recordID)
	if err != nil {
		return nil, err
	}
	anamneses, err := s.anamneses.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list anamneses: %w", err)
	}
	vitals, err := s.vitalSigns.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vital signs: %w", err)
	}
	therapies, _, err := s.therapies.List(ctx, &model.TherapyFilters{
		ClinicalRecordID: &recordID,
		Page:             model.Page{Page: 1, Limit: 1000},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list therapies: %w", err)
	}

	content, err := s.renderer.ClinicalRecord(&report.RecordReport{
		Patient:    patient,
		Record:     rec,
		Anamneses:  anamneses,
		VitalSigns: vitals,
		Therapies:  therapies,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReportsGenerated.WithLabelValues("clinical_record").Inc()
	return &Document{
		Filename: fmt.Sprintf("cartella-%s.pdf", rec.RecordNumber),
		Content:  content,
	}, nil
}

// EmailTherapyReport renders the therapy report and mails it to the recipient.
func (s *Service) EmailTherapyReport(ctx context.Context, therapyID uuid.UUID, to string) error {
	doc, err := s.TherapyReport(ctx, therapyID)
	if err != nil {
		return err
	}
	body := "In allegato il report della terapia.\n"
	if err := s.mailer.Send(ctx, to, "Report terapia", body, email.Attachment{Filename: doc.Filename, Content: doc.Content}); err != nil {
		return fmt.Errorf("failed to email therapy report: %w", err)
	}
	return nil
}

func (s *Service) recordWithPatient(ctx context.Context, recordID uuid.UUID) (*model.ClinicalRecord, *model.Patient, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get clinical record: %w", err)
	}
	patient, err := s.patients.Get(ctx, rec.PatientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return rec, patient, nil
}
