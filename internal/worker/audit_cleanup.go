package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/physio-api/pkg/metrics"
)

// AuditPruner deletes audit entries older than a cutoff.
type AuditPruner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// EventPruner deletes relayed outbox events past their expiry.
type EventPruner interface {
	CleanupProcessedEvents(ctx context.Context) (int64, error)
}

// AuditCleanupWorker enforces audit log retention and drops relayed outbox rows.
type AuditCleanupWorker struct {
	audit           AuditPruner
	events          EventPruner
	retentionDays   int
	cleanupInterval time.Duration
	logger          zerolog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewAuditCleanupWorker(
	audit AuditPruner,
	events EventPruner,
	retentionDays int,
	cleanupInterval time.Duration,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		audit:           audit,
		events:          events,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          logger.With().Str("worker", "audit_cleanup").Logger(),
		metrics:         m,
		now:             time.Now,
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	w.logger.Info().Int("retention_days", w.retentionDays).Dur("interval", w.cleanupInterval).Msg("starting cleanup worker")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("shutting down cleanup worker")
			return
		case <-ticker.C:
			if err := w.Cleanup(ctx); err != nil {
				w.logger.Error().Err(err).Msg("cleanup failed")
			}
		}
	}
}

// Cleanup runs one retention pass.
func (w *AuditCleanupWorker) Cleanup(ctx context.Context) error {
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.audit.Cleanup(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	w.metrics.AuditLogsPruned.Add(float64(rows))
	w.logger.Info().Int64("rows", rows).Time("cutoff", cutoff).Msg("pruned audit logs")

	if w.events == nil {
		return nil
	}
	events, err := w.events.CleanupProcessedEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup outbox events: %w", err)
	}
	w.logger.Info().Int64("rows", events).Msg("pruned processed outbox events")
	return nil
}
