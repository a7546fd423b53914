package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
)

const outboxColumns = `id, event_type, aggregate_id, payload, status, error_message, created_at,
	processed_at, updated_at, retry_count, retry_at`

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		jsonArg(event.Payload),
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, fn func(repository.OutboxTx, []*model.OutboxEvent) error) error {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status IN ($1, $2)
		AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		events := []*model.OutboxEvent{}
		if err := tx.SelectContext(ctx, &events, query, model.OutboxStatusPending, model.OutboxStatusFailed, limit); err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		return fn(&outboxTx{tx: tx}, events)
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}

type outboxTx struct {
	tx *sqlx.Tx
}

func (o *outboxTx) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	if _, err := o.tx.ExecContext(ctx, query, model.OutboxStatusProcessed, id); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (o *outboxTx) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = $2, retry_count = retry_count + 1, retry_at = $3, updated_at = NOW()
		WHERE id = $4
	`
	if _, err := o.tx.ExecContext(ctx, query, model.OutboxStatusFailed, errMsg, retryAt, id); err != nil {
		return fmt.Errorf("failed to schedule event retry: %w", err)
	}
	return nil
}

func (o *outboxTx) MoveToDeadLetter(ctx context.Context, evt *model.OutboxEvent) error {
	insert := `
		INSERT INTO outbox_events_deadletter (
			event_id, event_type, payload, error_message,
			retry_count, last_retry_at, created_at
		) VALUES ($1, $2, $3::jsonb, $4, $5, $6, NOW())
	`
	if _, err := o.tx.ExecContext(ctx, insert, evt.ID, evt.EventType, jsonArg(evt.Payload),
		evt.ErrorMessage, evt.RetryCount, evt.RetryAt); err != nil {
		return fmt.Errorf("failed to move event to dead letter: %w", err)
	}
	if _, err := o.tx.ExecContext(ctx, `DELETE FROM outbox_events WHERE id = $1`, evt.ID); err != nil {
		return fmt.Errorf("failed to remove dead event: %w", err)
	}
	return nil
}
