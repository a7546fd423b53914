package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

const therapyTypeColumns = `id, code, name, category, description, default_duration, default_sessions,
	is_active, created_at, updated_at`

type therapyTypeRepository struct {
	BaseRepository
}

func NewTherapyTypeRepository(base BaseRepository) repository.TherapyTypeRepository {
	return &therapyTypeRepository{base}
}

func (r *therapyTypeRepository) Create(ctx context.Context, t *model.TherapyType) error {
	query := `
		INSERT INTO therapy_types (` + therapyTypeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Code, t.Name, t.Category, t.Description, t.DefaultDuration, t.DefaultSessions,
		t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict(fmt.Sprintf("therapy type %s already exists", t.Code), err)
	}
	if err != nil {
		return fmt.Errorf("failed to create therapy type: %w", err)
	}
	return nil
}

func (r *therapyTypeRepository) Get(ctx context.Context, id uuid.UUID) (*model.TherapyType, error) {
	var t model.TherapyType
	if err := r.db.GetContext(ctx, &t, `SELECT `+therapyTypeColumns+` FROM therapy_types WHERE id = $1`, id); err != nil {
		return nil, translateError(err, "therapy type")
	}
	return &t, nil
}

func (r *therapyTypeRepository) GetByCode(ctx context.Context, code model.Modality) (*model.TherapyType, error) {
	var t model.TherapyType
	if err := r.db.GetContext(ctx, &t, `SELECT `+therapyTypeColumns+` FROM therapy_types WHERE code = $1`, code); err != nil {
		return nil, translateError(err, "therapy type")
	}
	return &t, nil
}

func (r *therapyTypeRepository) Update(ctx context.Context, t *model.TherapyType) error {
	query := `
		UPDATE therapy_types SET
			name = $1, category = $2, description = $3, default_duration = $4,
			default_sessions = $5, is_active = $6, updated_at = $7
		WHERE id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		t.Name, t.Category, t.Description, t.DefaultDuration,
		t.DefaultSessions, t.IsActive, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update therapy type: %w", err)
	}
	return requireRow(res, "therapy type")
}

func (r *therapyTypeRepository) List(ctx context.Context, filters *model.TherapyTypeFilters) ([]*model.TherapyType, error) {
	var w whereBuilder
	if filters != nil {
		if filters.Category != "" {
			w.add("category = $%d", filters.Category)
		}
		if filters.Active != nil {
			w.add("is_active = $%d", *filters.Active)
		}
	}
	types := []*model.TherapyType{}
	query := `SELECT ` + therapyTypeColumns + ` FROM therapy_types` + w.String() + ` ORDER BY category, name`
	if err := r.db.SelectContext(ctx, &types, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list therapy types: %w", err)
	}
	return types, nil
}

func (r *therapyTypeRepository) CountOpenTherapies(ctx context.Context, id uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM therapies WHERE therapy_type_id = $1 AND status IN ($2, $3)`
	var n int
	if err := r.db.GetContext(ctx, &n, query, id, model.TherapyStatusScheduled, model.TherapyStatusInProgress); err != nil {
		return 0, fmt.Errorf("failed to count therapies: %w", err)
	}
	return n, nil
}
