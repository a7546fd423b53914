package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/pkg/security"
)

const (
	therapyColumns = `id, clinical_record_id, therapy_type_id, modality, prescribed_sessions,
	completed_sessions, start_date, end_date, status, frequency, district, notes, parameters,
	created_at, updated_at`

	sessionColumns = `id, therapy_id, session_number, session_date, duration, status,
	vas_score_before, vas_score_after, therapist_id, notes, patient_signature,
	therapist_signature, signed_at, created_at, updated_at`
)

type therapyRepository struct {
	BaseRepository
	enc security.Encryptor
}

// NewTherapyRepository stores session signatures sealed with enc.
func NewTherapyRepository(base BaseRepository, enc security.Encryptor) repository.TherapyRepository {
	return &therapyRepository{BaseRepository: base, enc: enc}
}

func (r *therapyRepository) Create(ctx context.Context, t *model.Therapy) error {
	query := `
		INSERT INTO therapies (` + therapyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.ClinicalRecordID, t.TherapyTypeID, t.Modality, t.PrescribedSessions,
		t.CompletedSessions, t.StartDate, t.EndDate, t.Status, t.Frequency, t.District, t.Notes,
		jsonArg(t.Parameters), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create therapy: %w", err)
	}
	return nil
}

func (r *therapyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Therapy, error) {
	var t model.Therapy
	if err := r.db.GetContext(ctx, &t, `SELECT `+therapyColumns+` FROM therapies WHERE id = $1`, id); err != nil {
		return nil, translateError(err, "therapy")
	}
	return &t, nil
}

func (r *therapyRepository) List(ctx context.Context, filters *model.TherapyFilters) ([]*model.Therapy, int, error) {
	var w whereBuilder
	if filters.ClinicalRecordID != nil {
		w.add("clinical_record_id = $%d", *filters.ClinicalRecordID)
	}
	if filters.Status != "" {
		w.add("status = $%d", filters.Status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM therapies`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count therapies: %w", err)
	}

	limit, args := w.page(filters.Limit, filters.Offset())
	query := `SELECT ` + therapyColumns + ` FROM therapies` + w.String() + ` ORDER BY created_at DESC` + limit
	therapies := []*model.Therapy{}
	if err := r.db.SelectContext(ctx, &therapies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list therapies: %w", err)
	}
	return therapies, total, nil
}

// ListAll returns therapies whose patient has not been deleted.
func (r *therapyRepository) ListAll(ctx context.Context) ([]*model.Therapy, error) {
	query := `
		SELECT ` + prefixed("t", therapyColumns) + `
		FROM therapies t
		JOIN clinical_records cr ON cr.id = t.clinical_record_id
		JOIN patients p ON p.id = cr.patient_id
		WHERE p.deleted_at IS NULL
		ORDER BY t.created_at
	`
	therapies := []*model.Therapy{}
	if err := r.db.SelectContext(ctx, &therapies, query); err != nil {
		return nil, fmt.Errorf("failed to list therapies: %w", err)
	}
	return therapies, nil
}

func (r *therapyRepository) ListSessions(ctx context.Context, therapyID uuid.UUID) ([]*model.TherapySession, error) {
	return r.selectSessions(ctx, r.db, therapyID)
}

func (r *therapyRepository) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.TherapySession, error) {
	var s model.TherapySession
	if err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM therapy_sessions WHERE id = $1`, sessionID); err != nil {
		return nil, translateError(err, "therapy session")
	}
	if err := r.open(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *therapyRepository) Mutate(ctx context.Context, therapyID uuid.UUID, fn func(*model.TherapyAggregate) error) (*model.TherapyAggregate, error) {
	var ag *model.TherapyAggregate
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var t model.Therapy
		if err := tx.GetContext(ctx, &t, `SELECT `+therapyColumns+` FROM therapies WHERE id = $1 FOR UPDATE`, therapyID); err != nil {
			return translateError(err, "therapy")
		}
		sessions, err := r.selectSessions(ctx, tx, therapyID)
		if err != nil {
			return err
		}

		ag = model.NewTherapyAggregate(&t, sessions)
		if err := fn(ag); err != nil {
			return err
		}

		for _, s := range ag.Added() {
			if err := r.insertSession(ctx, tx, s); err != nil {
				return err
			}
		}
		for _, s := range ag.Changed() {
			if err := r.updateSession(ctx, tx, s); err != nil {
				return err
			}
		}
		return r.updateTherapy(ctx, tx, ag.Therapy)
	})
	if err != nil {
		return nil, err
	}
	return ag, nil
}

func (r *therapyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM therapy_sessions WHERE therapy_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete therapy sessions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM therapies WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete therapy: %w", err)
		}
		return requireRow(res, "therapy")
	})
}

func (r *therapyRepository) selectSessions(ctx context.Context, q sqlx.QueryerContext, therapyID uuid.UUID) ([]*model.TherapySession, error) {
	sessions := []*model.TherapySession{}
	query := `SELECT ` + sessionColumns + ` FROM therapy_sessions WHERE therapy_id = $1 ORDER BY session_number`
	if err := sqlx.SelectContext(ctx, q, &sessions, query, therapyID); err != nil {
		return nil, fmt.Errorf("failed to list therapy sessions: %w", err)
	}
	for _, s := range sessions {
		if err := r.open(s); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (r *therapyRepository) updateTherapy(ctx context.Context, tx *sqlx.Tx, t *model.Therapy) error {
	query := `
		UPDATE therapies SET
			completed_sessions = $1, start_date = $2, end_date = $3, status = $4,
			notes = $5, updated_at = $6
		WHERE id = $7
	`
	_, err := tx.ExecContext(ctx, query,
		t.CompletedSessions, t.StartDate, t.EndDate, t.Status, t.Notes, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update therapy: %w", err)
	}
	return nil
}

func (r *therapyRepository) insertSession(ctx context.Context, tx *sqlx.Tx, s *model.TherapySession) error {
	patientSig, therapistSig, err := r.seal(s)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO therapy_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, query,
		s.ID, s.TherapyID, s.SessionNumber, s.SessionDate, s.Duration, s.Status,
		s.VASBefore, s.VASAfter, s.TherapistID, s.Notes, patientSig,
		therapistSig, s.SignedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "therapy session")
	}
	return nil
}

func (r *therapyRepository) updateSession(ctx context.Context, tx *sqlx.Tx, s *model.TherapySession) error {
	patientSig, therapistSig, err := r.seal(s)
	if err != nil {
		return err
	}
	query := `
		UPDATE therapy_sessions SET
			session_date = $1, duration = $2, status = $3, vas_score_before = $4,
			vas_score_after = $5, therapist_id = $6, notes = $7, patient_signature = $8,
			therapist_signature = $9, signed_at = $10, updated_at = $11
		WHERE id = $12
	`
	_, err = tx.ExecContext(ctx, query,
		s.SessionDate, s.Duration, s.Status, s.VASBefore,
		s.VASAfter, s.TherapistID, s.Notes, patientSig,
		therapistSig, s.SignedAt, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update therapy session: %w", err)
	}
	return nil
}

func (r *therapyRepository) seal(s *model.TherapySession) (string, string, error) {
	patientSig, err := r.sealValue(s.PatientSignature)
	if err != nil {
		return "", "", err
	}
	therapistSig, err := r.sealValue(s.TherapistSignature)
	if err != nil {
		return "", "", err
	}
	return patientSig, therapistSig, nil
}

func (r *therapyRepository) sealValue(v string) (string, error) {
	if v == "" || r.enc == nil {
		return v, nil
	}
	sealed, err := r.enc.EncryptString(v)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt signature: %w", err)
	}
	return sealed, nil
}

func (r *therapyRepository) open(s *model.TherapySession) error {
	if r.enc == nil {
		return nil
	}
	for _, field := range []*string{&s.PatientSignature, &s.TherapistSignature} {
		if *field == "" {
			continue
		}
		plain, err := r.enc.DecryptString(*field)
		if err != nil {
			return fmt.Errorf("failed to decrypt signature: %w", err)
		}
		*field = plain
	}
	return nil
}
