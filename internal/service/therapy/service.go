package therapy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwalitptl/physio-api/internal/model"
	"github.com/jwalitptl/physio-api/internal/repository"
	"github.com/jwalitptl/physio-api/internal/service/audit"
	"github.com/jwalitptl/physio-api/internal/service/event"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/metrics"
)

var tracer = otel.Tracer("physio-api/therapy")

// Catalog resolves prescribable therapy types.
type Catalog interface {
	ActiveByCode(ctx context.Context, code model.Modality) (*model.TherapyType, error)
	GetTherapyType(ctx context.Context, id uuid.UUID) (*model.TherapyType, error)
}

// Records gives access to clinical records that still accept writes.
type Records interface {
	GetOpenRecord(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error)
}

type Service struct {
	repo    repository.TherapyRepository
	catalog Catalog
	records Records
	auditor audit.Recorder
	events  event.Emitter
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(
	repo repository.TherapyRepository,
	catalog Catalog,
	records Records,
	auditor audit.Recorder,
	events event.Emitter,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		records: records,
		auditor: auditor,
		events:  events,
		metrics: m,
		now:     time.Now,
	}
}

// CreateTherapy validates the modality parameters and prescribes a therapy
// on an open clinical record. No sessions are created.
func (s *Service) CreateTherapy(ctx context.Context, req *model.CreateTherapyRequest) (_ *model.Therapy, err error) {
	ctx, span := tracer.Start(ctx, "therapy.Create", trace.WithAttributes(attribute.String("therapy.type", req.TherapyType)))
	defer endSpan(span, &err)

	modality, err := model.ParseModality(req.TherapyType)
	if err != nil {
		return nil, err
	}
	params, err := model.DecodeParameters(modality, req.Parameters)
	if err != nil {
		return nil, err
	}

	therapyType, err := s.catalog.ActiveByCode(ctx, modality)
	if err != nil {
		return nil, err
	}
	if _, err := s.records.GetOpenRecord(ctx, req.ClinicalRecordID); err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, req.Parameters); err != nil {
		return nil, apperrors.Validation("invalid therapy parameters")
	}

	now := s.now()
	t := &model.Therapy{
		Base:               model.NewBase(now),
		ClinicalRecordID:   req.ClinicalRecordID,
		TherapyTypeID:      therapyType.ID,
		Modality:           modality,
		PrescribedSessions: prescribedSessions(req, params, therapyType),
		StartDate:          req.StartDate,
		Status:             model.TherapyStatusScheduled,
		Frequency:          req.Frequency,
		District:           req.District,
		Notes:              req.Notes,
		Parameters:         json.RawMessage(compact.Bytes()),
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create therapy: %w", err)
	}
	span.SetAttributes(attribute.String("therapy.id", t.ID.String()))

	s.metrics.TherapiesCreated.WithLabelValues(string(modality)).Inc()
	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntityTherapy, t.ID, t)
	s.events.Emit(ctx, model.EventTherapyCreated, t.ID, therapyPayload(t))
	return t, nil
}

func prescribedSessions(req *model.CreateTherapyRequest, params model.TherapyParams, tt *model.TherapyType) int {
	if req.PrescribedSessions != nil {
		return *req.PrescribedSessions
	}
	if counter, ok := params.(model.SessionCounter); ok && counter.SessionCount() > 0 {
		return counter.SessionCount()
	}
	return tt.DefaultSessions
}

func (s *Service) GetTherapy(ctx context.Context, id uuid.UUID) (*model.TherapyDetail, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get therapy: %w", err)
	}
	sessions, err := s.repo.ListSessions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return &model.TherapyDetail{Therapy: t, Sessions: sessions}, nil
}

func (s *Service) ListTherapies(ctx context.Context, filters *model.TherapyFilters) ([]*model.Therapy, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, apperrors.Validation("invalid filter", apperrors.FieldError{Field: "status", Message: "is not a therapy status"})
	}
	therapies, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list therapies: %w", err)
	}
	return therapies, total, nil
}

func (s *Service) ListSessions(ctx context.Context, therapyID uuid.UUID) ([]*model.TherapySession, error) {
	if _, err := s.repo.Get(ctx, therapyID); err != nil {
		return nil, fmt.Errorf("failed to get therapy: %w", err)
	}
	return s.repo.ListSessions(ctx, therapyID)
}

func (s *Service) ScheduleSession(ctx context.Context, req *model.ScheduleSessionRequest) (_ *model.TherapySession, err error) {
	ctx, span := tracer.Start(ctx, "therapy.ScheduleSession", trace.WithAttributes(attribute.String("therapy.id", req.TherapyID.String())))
	defer endSpan(span, &err)

	if req.Duration == 0 {
		t, err := s.repo.Get(ctx, req.TherapyID)
		if err != nil {
			return nil, fmt.Errorf("failed to get therapy: %w", err)
		}
		tt, err := s.catalog.GetTherapyType(ctx, t.TherapyTypeID)
		if err != nil {
			return nil, err
		}
		req.Duration = tt.DefaultDuration
	}

	var session *model.TherapySession
	ag, err := s.repo.Mutate(ctx, req.TherapyID, func(ag *model.TherapyAggregate) error {
		var err error
		session, err = ag.ScheduleSession(*req, s.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule session: %w", err)
	}

	s.metrics.SessionTransitions.WithLabelValues(string(model.SessionStatusScheduled)).Inc()
	s.auditor.Log(ctx, model.AuditActionCreate, model.AuditEntitySession, session.ID, session)
	s.events.Emit(ctx, model.EventSessionScheduled, session.ID, sessionPayload(ag.Therapy, session))
	return session, nil
}

// UpdateProgress records progress on a session, completing it when the
// request carries status COMPLETED.
func (s *Service) UpdateProgress(ctx context.Context, sessionID uuid.UUID, req *model.UpdateProgressRequest) (*model.TherapySession, error) {
	action := model.AuditActionUpdate
	if req.Status != nil {
		action = model.AuditActionComplete
	}
	return s.mutateSession(ctx, "therapy.UpdateProgress", sessionID, action, func(ag *model.TherapyAggregate) (*model.TherapySession, error) {
		return ag.UpdateProgress(sessionID, *req, s.now())
	})
}

func (s *Service) CancelSession(ctx context.Context, sessionID uuid.UUID, reason string) (*model.TherapySession, error) {
	return s.mutateSession(ctx, "therapy.CancelSession", sessionID, model.AuditActionCancel, func(ag *model.TherapyAggregate) (*model.TherapySession, error) {
		return ag.CancelSession(sessionID, reason, s.now())
	})
}

func (s *Service) RescheduleSession(ctx context.Context, sessionID uuid.UUID, req *model.RescheduleRequest) (*model.TherapySession, error) {
	return s.mutateSession(ctx, "therapy.RescheduleSession", sessionID, model.AuditActionReschedule, func(ag *model.TherapyAggregate) (*model.TherapySession, error) {
		return ag.RescheduleSession(sessionID, *req, s.now())
	})
}

func (s *Service) MarkMissed(ctx context.Context, sessionID uuid.UUID, reason string) (*model.TherapySession, error) {
	return s.mutateSession(ctx, "therapy.MarkMissed", sessionID, model.AuditActionMiss, func(ag *model.TherapyAggregate) (*model.TherapySession, error) {
		return ag.MarkMissed(sessionID, reason, s.now())
	})
}

func (s *Service) mutateSession(
	ctx context.Context,
	spanName string,
	sessionID uuid.UUID,
	action string,
	fn func(*model.TherapyAggregate) (*model.TherapySession, error),
) (_ *model.TherapySession, err error) {
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("session.id", sessionID.String())))
	defer endSpan(span, &err)

	current, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var (
		session    *model.TherapySession
		wasStatus  model.TherapyStatus
		prevStatus model.SessionStatus
	)
	ag, err := s.repo.Mutate(ctx, current.TherapyID, func(ag *model.TherapyAggregate) error {
		wasStatus = ag.Therapy.Status
		if existing, err := ag.Session(sessionID); err == nil {
			prevStatus = existing.Status
		}
		var err error
		session, err = fn(ag)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if session.Status != prevStatus {
		s.metrics.SessionTransitions.WithLabelValues(string(session.Status)).Inc()
		if evt, ok := sessionEvents[session.Status]; ok {
			s.events.Emit(ctx, evt, session.ID, sessionPayload(ag.Therapy, session))
		}
	}
	if wasStatus != model.TherapyStatusCompleted && ag.Therapy.Status == model.TherapyStatusCompleted {
		log.Ctx(ctx).Info().Str("therapy_id", ag.Therapy.ID.String()).Msg("therapy completed")
		s.events.Emit(ctx, model.EventTherapyCompleted, ag.Therapy.ID, therapyPayload(ag.Therapy))
	}

	s.auditor.Log(ctx, action, model.AuditEntitySession, session.ID, map[string]interface{}{
		"from": prevStatus,
		"to":   session.Status,
	})
	return session, nil
}

var sessionEvents = map[model.SessionStatus]string{
	model.SessionStatusCompleted:   model.EventSessionCompleted,
	model.SessionStatusCancelled:   model.EventSessionCancelled,
	model.SessionStatusRescheduled: model.EventSessionRescheduled,
}

// CancelTherapy cancels the therapy along with its pending sessions.
func (s *Service) CancelTherapy(ctx context.Context, id uuid.UUID, reason string) (_ *model.Therapy, err error) {
	ctx, span := tracer.Start(ctx, "therapy.Cancel", trace.WithAttributes(attribute.String("therapy.id", id.String())))
	defer endSpan(span, &err)

	ag, err := s.repo.Mutate(ctx, id, func(ag *model.TherapyAggregate) error {
		return ag.Cancel(reason, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel therapy: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCancel, model.AuditEntityTherapy, id, map[string]interface{}{"reason": reason})
	s.events.Emit(ctx, model.EventTherapyCancelled, id, therapyPayload(ag.Therapy))
	return ag.Therapy, nil
}

func (s *Service) DeleteTherapy(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete therapy: %w", err)
	}
	s.auditor.Log(ctx, model.AuditActionDelete, model.AuditEntityTherapy, id, nil)
	return nil
}

func (s *Service) VASImprovement(ctx context.Context, id uuid.UUID) (*model.VASImprovement, error) {
	sessions, err := s.ListSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	out := model.ComputeVASImprovement(id, sessions)
	return &out, nil
}

func therapyPayload(t *model.Therapy) map[string]interface{} {
	return map[string]interface{}{
		"therapyId":         t.ID,
		"clinicalRecordId":  t.ClinicalRecordID,
		"therapyType":       t.Modality,
		"status":            t.Status,
		"completedSessions": t.CompletedSessions,
	}
}

func sessionPayload(t *model.Therapy, session *model.TherapySession) map[string]interface{} {
	return map[string]interface{}{
		"sessionId":     session.ID,
		"therapyId":     t.ID,
		"sessionNumber": session.SessionNumber,
		"status":        session.Status,
		"sessionDate":   session.SessionDate,
	}
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
