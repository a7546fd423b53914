package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
)

const auditColumns = `id, user_id, action, entity_type, entity_id, changes, ip_address, user_agent, created_at`

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.Action, log.EntityType, log.EntityID,
		jsonArg(log.Changes), log.IPAddress, log.UserAgent, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error) {
	var w whereBuilder
	if filters.UserID != nil {
		w.add("user_id = $%d", *filters.UserID)
	}
	if filters.EntityType != "" {
		w.add("entity_type = $%d", filters.EntityType)
	}
	if filters.EntityID != nil {
		w.add("entity_id = $%d", *filters.EntityID)
	}
	if filters.Action != "" {
		w.add("action = $%d", filters.Action)
	}
	if filters.From != nil {
		w.add("created_at >= $%d", *filters.From)
	}
	if filters.To != nil {
		w.add("created_at <= $%d", *filters.To)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	limit, args := w.page(filters.Limit, filters.Offset())
	logs := []*model.AuditLog{}
	query := `SELECT ` + auditColumns + ` FROM audit_logs` + w.String() + ` ORDER BY created_at DESC` + limit
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}
