package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
)

// Recorder is what domain services need to leave an audit trail.
type Recorder interface {
	Log(ctx context.Context, action, entityType string, entityID uuid.UUID, changes interface{})
}

type Service struct {
	repo repository.AuditRepository
	now  func() time.Time
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Log writes an entry attributed to the caller on ctx. Failures are logged, never returned.
func (s *Service) Log(ctx context.Context, action, entityType string, entityID uuid.UUID, changes interface{}) {
	entry := &model.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  s.now(),
	}

	if p := model.PrincipalFrom(ctx); p != nil {
		userID := p.UserID
		entry.UserID = &userID
	}
	info := model.RequestInfoFrom(ctx)
	entry.IPAddress = info.IPAddress
	entry.UserAgent = info.UserAgent

	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("entity_type", entityType).Msg("failed to marshal audit changes")
		} else {
			entry.Changes = data
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Str("entity_id", entityID.String()).
			Msg("failed to write audit log")
	}
}

func (s *Service) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.DeleteBefore(ctx, before)
}
