package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
)

const eventExpiry = 24 * time.Hour

// Emitter queues domain events for the outbox relay.
type Emitter interface {
	Emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{})
}

type EventService struct {
	outboxRepo repository.OutboxRepository
	now        func() time.Time
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{outboxRepo: outboxRepo, now: time.Now}
}

// Emit stores the event in the outbox. The write that produced it has already
// committed, so failures are logged rather than surfaced to the caller.
func (s *EventService) Emit(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) {
	event, err := model.NewOutboxEvent(eventType, aggregateID, payload, s.now())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		return
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("event_type", eventType).
			Str("aggregate_id", aggregateID.String()).
			Msg("failed to create outbox event")
	}
}

func (s *EventService) CleanupProcessedEvents(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-eventExpiry)
	count, err := s.outboxRepo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup events: %w", err)
	}
	return count, nil
}
