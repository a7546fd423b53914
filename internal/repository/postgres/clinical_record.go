package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

const (
	recordColumns = `id, patient_id, record_number, acceptance_date, diagnosis, diagnostic_details,
	symptomatology, objective_examination, instrumental_exams, clinical_evaluation,
	intervention_date, intervention_doctor, is_active, closed_at, created_at, updated_at`

	recordNumberConstraint = "clinical_records_record_number_key"
	maxNumberAttempts      = 5
)

type clinicalRecordRepository struct {
	BaseRepository
}

func NewClinicalRecordRepository(base BaseRepository) repository.ClinicalRecordRepository {
	return &clinicalRecordRepository{base}
}

// Create numbers the record inside a transaction and retries when a concurrent
// insert took the same number.
func (r *clinicalRecordRepository) Create(ctx context.Context, rec *model.ClinicalRecord) error {
	year := rec.CreatedAt.Year()
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err = r.WithTx(ctx, func(tx *sqlx.Tx) error {
			var existing []string
			if err := tx.SelectContext(ctx, &existing,
				`SELECT record_number FROM clinical_records WHERE record_number LIKE $1`,
				model.RecordNumberPrefix(year)+"%",
			); err != nil {
				return fmt.Errorf("failed to read record numbers: %w", err)
			}
			rec.RecordNumber = model.NextRecordNumber(year, existing)
			return r.insert(ctx, tx, rec)
		})
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) || uniqueConstraint(err) != recordNumberConstraint {
			break
		}
	}
	if isUniqueViolation(err) {
		return apperrors.Conflict("could not allocate a record number", err)
	}
	return fmt.Errorf("failed to create clinical record: %w", err)
}

func (r *clinicalRecordRepository) insert(ctx context.Context, tx *sqlx.Tx, rec *model.ClinicalRecord) error {
	query := `
		INSERT INTO clinical_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := tx.ExecContext(ctx, query,
		rec.ID, rec.PatientID, rec.RecordNumber, rec.AcceptanceDate, rec.Diagnosis, rec.DiagnosticDetails,
		rec.Symptomatology, rec.ObjectiveExamination, rec.InstrumentalExams, rec.ClinicalEvaluation,
		rec.InterventionDate, rec.InterventionDoctor, rec.IsActive, rec.ClosedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

func (r *clinicalRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM clinical_records WHERE id = $1`
	var rec model.ClinicalRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		return nil, translateError(err, "clinical record")
	}
	return &rec, nil
}

func (r *clinicalRecordRepository) Update(ctx context.Context, rec *model.ClinicalRecord) error {
	query := `
		UPDATE clinical_records SET
			acceptance_date = $1, diagnosis = $2, diagnostic_details = $3, symptomatology = $4,
			objective_examination = $5, instrumental_exams = $6, clinical_evaluation = $7,
			intervention_date = $8, intervention_doctor = $9, is_active = $10, closed_at = $11,
			updated_at = $12
		WHERE id = $13
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.AcceptanceDate, rec.Diagnosis, rec.DiagnosticDetails, rec.Symptomatology,
		rec.ObjectiveExamination, rec.InstrumentalExams, rec.ClinicalEvaluation,
		rec.InterventionDate, rec.InterventionDoctor, rec.IsActive, rec.ClosedAt,
		rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update clinical record: %w", err)
	}
	return requireRow(res, "clinical record")
}

func (r *clinicalRecordRepository) List(ctx context.Context, filters *model.RecordFilters) ([]*model.ClinicalRecord, int, error) {
	var w whereBuilder
	if filters.PatientID != nil {
		w.add("patient_id = $%d", *filters.PatientID)
	}
	if filters.Active != nil {
		w.add("is_active = $%d", *filters.Active)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM clinical_records`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count clinical records: %w", err)
	}

	limit, args := w.page(filters.Limit, filters.Offset())
	query := `SELECT ` + recordColumns + ` FROM clinical_records` + w.String() + ` ORDER BY acceptance_date DESC, record_number DESC` + limit
	records := []*model.ClinicalRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list clinical records: %w", err)
	}
	return records, total, nil
}

// ListAll returns records whose patient has not been deleted.
func (r *clinicalRecordRepository) ListAll(ctx context.Context) ([]*model.ClinicalRecord, error) {
	query := `
		SELECT ` + prefixed("cr", recordColumns) + `
		FROM clinical_records cr
		JOIN patients p ON p.id = cr.patient_id
		WHERE p.deleted_at IS NULL
		ORDER BY cr.record_number
	`
	records := []*model.ClinicalRecord{}
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to list clinical records: %w", err)
	}
	return records, nil
}
