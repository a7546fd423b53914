package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
)

const (
	anamnesisColumns = `id, clinical_record_id, recorded_at, chief_complaint, present_illness,
	past_medical_history, medications, allergies, family_history, social_history, notes,
	created_at, updated_at`

	vitalSignColumns = `id, clinical_record_id, measured_at, blood_pressure, heart_rate,
	respiratory_rate, temperature, oxygen_saturation, weight, height, notes, created_at, updated_at`
)

type anamnesisRepository struct {
	BaseRepository
}

func NewAnamnesisRepository(base BaseRepository) repository.AnamnesisRepository {
	return &anamnesisRepository{base}
}

func (r *anamnesisRepository) Create(ctx context.Context, a *model.Anamnesis) error {
	query := `
		INSERT INTO anamneses (` + anamnesisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.ClinicalRecordID, a.RecordedAt, a.ChiefComplaint, a.PresentIllness,
		a.PastMedicalHistory, a.Medications, a.Allergies, a.FamilyHistory, a.SocialHistory, a.Notes,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create anamnesis: %w", err)
	}
	return nil
}

func (r *anamnesisRepository) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*model.Anamnesis, error) {
	query := `SELECT ` + anamnesisColumns + ` FROM anamneses WHERE clinical_record_id = $1 ORDER BY recorded_at DESC`
	items := []*model.Anamnesis{}
	if err := r.db.SelectContext(ctx, &items, query, recordID); err != nil {
		return nil, fmt.Errorf("failed to list anamneses: %w", err)
	}
	return items, nil
}

type vitalSignRepository struct {
	BaseRepository
}

func NewVitalSignRepository(base BaseRepository) repository.VitalSignRepository {
	return &vitalSignRepository{base}
}

func (r *vitalSignRepository) Create(ctx context.Context, v *model.VitalSign) error {
	query := `
		INSERT INTO vital_signs (` + vitalSignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.ClinicalRecordID, v.MeasuredAt, v.BloodPressure, v.HeartRate,
		v.RespiratoryRate, v.Temperature, v.OxygenSaturation, v.Weight, v.Height, v.Notes,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vital sign: %w", err)
	}
	return nil
}

func (r *vitalSignRepository) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*model.VitalSign, error) {
	query := `SELECT ` + vitalSignColumns + ` FROM vital_signs WHERE clinical_record_id = $1 ORDER BY measured_at DESC`
	items := []*model.VitalSign{}
	if err := r.db.SelectContext(ctx, &items, query, recordID); err != nil {
		return nil, fmt.Errorf("failed to list vital signs: %w", err)
	}
	return items, nil
}
