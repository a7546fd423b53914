package therapytype

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

const catalogKey = "catalog"

// Service manages the therapy type catalog. Active types are read through
// an in-process cache that every write invalidates.
type Service struct {
	repo    repository.TherapyTypeRepository
	auditor audit.Recorder
	cache   *cache.Cache
	now     func() time.Time
}

func NewService(repo repository.TherapyTypeRepository, auditor audit.Recorder, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		repo:    repo,
		auditor: auditor,
		cache:   cache.New(ttl, 2*ttl),
		now:     time.Now,
	}
}

func (s *Service) CreateTherapyType(ctx context.Context, req *model.CreateTherapyTypeRequest) (*model.TherapyType, error) {
	code, err := model.ParseModality(strings.ToUpper(req.Code))
	if err != nil {
		return nil, err
	}

	t := &model.TherapyType{
		Base:            model.NewBase(s.now()),
		Code:            code,
		Name:            req.Name,
		Category:        req.Category,
		Description:     req.Description,
		DefaultDuration: req.DefaultDuration,
		DefaultSessions: req.DefaultSessions,
		IsActive:        true,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create therapy type: %w", err)
	}
	s.invalidate()

	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityTherapyType, t.ID, t)
	return t, nil
}

func (s *Service) GetTherapyType(ctx context.Context, id uuid.UUID) (*model.TherapyType, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get therapy type: %w", err)
	}
	return t, nil
}

// ActiveByCode resolves a modality to its catalog entry; an inactive entry
// cannot be prescribed.
func (s *Service) ActiveByCode(ctx context.Context, code model.Modality) (*model.TherapyType, error) {
	catalog, err := s.activeCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := catalog[code]; ok {
		return t, nil
	}

	t, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get therapy type: %w", err)
	}
	if !t.IsActive {
		return nil, apperrors.Validation("therapy type is not active",
			apperrors.FieldError{Field: "therapyType", Message: "is not active"})
	}
	return t, nil
}

func (s *Service) ListTherapyTypes(ctx context.Context, filters *model.TherapyTypeFilters) ([]*model.TherapyType, error) {
	types, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list therapy types: %w", err)
	}
	return types, nil
}

func (s *Service) UpdateTherapyType(ctx context.Context, id uuid.UUID, req *model.UpdateTherapyTypeRequest) (*model.TherapyType, error) {
	t, err := s.GetTherapyType(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(t)
	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update therapy type: %w", err)
	}
	s.invalidate()

	s.auditor.Log(ctx, model.AuditActionUpdate, model.AuditEntityTherapyType, t.ID, req)
	return t, nil
}

// Deactivate hides the type from new prescriptions. Types still used by a
// scheduled or in-progress therapy stay active.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*model.TherapyType, error) {
	t, err := s.GetTherapyType(ctx, id)
	if err != nil {
		return nil, err
	}

	open, err := s.repo.CountOpenTherapies(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count therapies: %w", err)
	}
	if open > 0 {
		return nil, apperrors.Conflict(fmt.Sprintf("therapy type is used by %d open therapies", open), nil)
	}

	return s.setActive(ctx, t, false)
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*model.TherapyType, error) {
	t, err := s.GetTherapyType(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setActive(ctx, t, true)
}

// Seed inserts the missing entries of the default catalog and reports how
// many were added.
func (s *Service) Seed(ctx context.Context) (int, error) {
	added := 0
	for _, entry := range model.DefaultCatalog() {
		_, err := s.repo.GetByCode(ctx, entry.Code)
		if err == nil {
			continue
		}
		if !apperrors.IsCode(err, apperrors.ErrNotFound) {
			return added, fmt.Errorf("failed to look up therapy type %s: %w", entry.Code, err)
		}

		t := entry
		t.Base = model.NewBase(s.now())
		t.IsActive = true
		if err := s.repo.Create(ctx, &t); err != nil {
			return added, fmt.Errorf("failed to seed therapy type %s: %w", entry.Code, err)
		}
		added++
	}
	if added > 0 {
		s.invalidate()
		log.Ctx(ctx).Info().Int("added", added).Msg("therapy type catalog seeded")
	}
	return added, nil
}

func (s *Service) setActive(ctx context.Context, t *model.TherapyType, active bool) (*model.TherapyType, error) {
	t.IsActive = active
	t.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update therapy type: %w", err)
	}
	s.invalidate()

	action := model.AuditActionDeactivate
	if active {
		action = model.AuditActionActivate
	}
	s.auditor.Log(ctx, action, model.AuditEntityTherapyType, t.ID, nil)
	return t, nil
}

func (s *Service) activeCatalog(ctx context.Context) (map[model.Modality]*model.TherapyType, error) {
	if cached, ok := s.cache.Get(catalogKey); ok {
		return cached.(map[model.Modality]*model.TherapyType), nil
	}

	active := true
	types, err := s.repo.List(ctx, &model.TherapyTypeFilters{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to load therapy catalog: %w", err)
	}
	catalog := make(map[model.Modality]*model.TherapyType, len(types))
	for _, t := range types {
		catalog[t.Code] = t
	}
	s.cache.SetDefault(catalogKey, catalog)
	return catalog, nil
}

func (s *Service) invalidate() {
	s.cache.Delete(catalogKey)
}
