package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

// Service searches across patients, records and therapies. Candidates are
// loaded in full and filtered in memory.
type Service struct {
	patients     repository.PatientRepository
	records      repository.ClinicalRecordRepository
	therapies    repository.TherapyRepository
	therapyTypes repository.TherapyTypeRepository
}

func NewService(
	patients repository.PatientRepository,
	records repository.ClinicalRecordRepository,
	therapies repository.TherapyRepository,
	therapyTypes repository.TherapyTypeRepository,
) *Service {
	return &Service{
		patients:     patients,
		records:      records,
		therapies:    therapies,
		therapyTypes: therapyTypes,
	}
}

func (s *Service) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < model.MinSearchLength {
		return nil, apperrors.Validation("search query too short", apperrors.FieldError{
			Field:   "q",
			Message: fmt.Sprintf("must be at least %d characters", model.MinSearchLength),
		})
	}

	patients, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load clinical records: %w", err)
	}
	therapies, err := s.therapies.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load therapies: %w", err)
	}
	types, err := s.therapyTypes.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load therapy types: %w", err)
	}

	result := &model.SearchResult{
		Query:           q,
		Patients:        []*model.Patient{},
		ClinicalRecords: []*model.ClinicalRecord{},
		Therapies:       []*model.Therapy{},
	}

	patientHit := map[uuid.UUID]bool{}
	for _, p := range patients {
		if model.MatchesPatient(p, q) {
			patientHit[p.ID] = true
			result.Patients = append(result.Patients, p)
		}
	}

	visible := map[uuid.UUID]bool{}
	recordHit := map[uuid.UUID]bool{}
	for _, r := range records {
		visible[r.ID] = true
		if model.MatchesRecord(r, q) || patientHit[r.PatientID] {
			recordHit[r.ID] = true
			if model.MatchesRecord(r, q) {
				result.ClinicalRecords = append(result.ClinicalRecords, r)
			}
		}
	}

	typeHit := map[uuid.UUID]bool{}
	lower := strings.ToLower(q)
	for _, t := range types {
		if strings.Contains(strings.ToLower(t.Name), lower) {
			typeHit[t.ID] = true
		}
	}

	// Records of deleted patients are absent from records, so their therapies
	// never surface through a type-name hit either.
	for _, t := range therapies {
		if !visible[t.ClinicalRecordID] {
			continue
		}
		if recordHit[t.ClinicalRecordID] || typeHit[t.TherapyTypeID] {
			result.Therapies = append(result.Therapies, t)
		}
	}
	return result, nil
}
