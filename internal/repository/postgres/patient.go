package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

const patientColumns = `id, fiscal_code, first_name, last_name, birth_date, birth_place, gender,
	address, city, postal_code, phone, mobile, email, privacy_consent, marketing_consent,
	data_processing_consent, notes, deleted_at, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, p *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.FiscalCode, p.FirstName, p.LastName, p.BirthDate, p.BirthPlace, p.Gender,
		p.Address, p.City, p.PostalCode, p.Phone, p.Mobile, p.Email, p.PrivacyConsent, p.MarketingConsent,
		p.DataProcessingConsent, p.Notes, p.DeletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("a patient with this fiscal code already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND deleted_at IS NULL`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, translateError(err, "patient")
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, p *model.Patient) error {
	query := `
		UPDATE patients SET
			fiscal_code = $1, first_name = $2, last_name = $3, birth_date = $4, birth_place = $5,
			gender = $6, address = $7, city = $8, postal_code = $9, phone = $10, mobile = $11,
			email = $12, privacy_consent = $13, marketing_consent = $14, data_processing_consent = $15,
			notes = $16, updated_at = $17
		WHERE id = $18 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query,
		p.FiscalCode, p.FirstName, p.LastName, p.BirthDate, p.BirthPlace,
		p.Gender, p.Address, p.City, p.PostalCode, p.Phone, p.Mobile,
		p.Email, p.PrivacyConsent, p.MarketingConsent, p.DataProcessingConsent,
		p.Notes, p.UpdatedAt, p.ID,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("a patient with this fiscal code already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return requireRow(res, "patient")
}

func (r *patientRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE patients SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return requireRow(res, "patient")
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	var w whereBuilder
	w.raw("deleted_at IS NULL")
	if filters.Search != "" {
		w.add("(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR (first_name || ' ' || last_name) ILIKE $%[1]d OR (last_name || ' ' || first_name) ILIKE $%[1]d)", "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM patients`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	limit, args := w.page(filters.Limit, filters.Offset())
	query := `SELECT ` + patientColumns + ` FROM patients` + w.String() + ` ORDER BY last_name, first_name` + limit
	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepository) ListAll(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE deleted_at IS NULL ORDER BY last_name, first_name`
	patients := []*model.Patient{}
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
