package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/pkg/logger"
	"github.com/jwalitptl/physio-api/pkg/messaging"
	"github.com/jwalitptl/physio-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	Channel       string
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is the number of failed batches after which an event is dead-lettered.
	MaxRetries int
}

// OutboxProcessor relays pending outbox events to the broker.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.Channel == "" {
		panic("Channel must be set")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor", "channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "failed to process events")
			}
		}
	}
}

// ProcessBatch claims one batch and publishes it, recording each outcome in
// the claiming transaction.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	err := p.repo.ClaimPending(ctx, p.config.BatchSize, func(tx repository.OutboxTx, events []*model.OutboxEvent) error {
		for _, event := range events {
			if err := p.processEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "error").Inc()
		return fmt.Errorf("failed to process pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "success").Inc()
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, tx repository.OutboxTx, event *model.OutboxEvent) error {
	envelope := messaging.Envelope{
		ID:         event.ID,
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}

	publishErr := p.retry(ctx, event.EventType, func() error {
		return p.broker.Publish(ctx, p.config.Channel, envelope)
	})
	if publishErr == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := tx.MarkProcessed(ctx, event.ID); err != nil {
			return fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
		}
		return nil
	}

	p.metrics.OutboxEventsFailed.Inc()
	p.logger.Error(publishErr, "failed to publish event",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"retry_count", event.RetryCount)

	if event.RetryCount+1 >= p.config.MaxRetries {
		if err := tx.MoveToDeadLetter(ctx, event); err != nil {
			return fmt.Errorf("failed to dead-letter event %s: %w", event.ID, err)
		}
		p.logger.Warn("event moved to dead letter", "event_id", event.ID.String(), "event_type", event.EventType)
		return nil
	}

	retryAt := p.now().Add(p.backoff(event.RetryCount))
	if err := tx.MarkRetry(ctx, event.ID, publishErr.Error(), retryAt); err != nil {
		return fmt.Errorf("failed to schedule retry for event %s: %w", event.ID, err)
	}
	return nil
}

// backoff doubles the retry delay for every failed batch, capped at one hour.
func (p *OutboxProcessor) backoff(retryCount int) time.Duration {
	d := p.config.RetryDelay
	for i := 0; i < retryCount && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

func (p *OutboxProcessor) retry(ctx context.Context, eventType string, fn func() error) error {
	var err error
	for i := 0; i < p.config.RetryAttempts; i++ {
		if i > 0 {
			p.metrics.OutboxRetries.WithLabelValues(eventType).Inc()
			if serr := p.sleep(ctx, p.config.RetryDelay); serr != nil {
				return serr
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
