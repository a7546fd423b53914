package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

type TherapyStatus string

const (
	TherapyStatusScheduled  TherapyStatus = "SCHEDULED"
	TherapyStatusInProgress TherapyStatus = "IN_PROGRESS"
	TherapyStatusCompleted  TherapyStatus = "COMPLETED"
	TherapyStatusCancelled  TherapyStatus = "CANCELLED"
)

// IsOpen reports whether sessions may still be created or changed.
func (s TherapyStatus) IsOpen() bool {
	return s == TherapyStatusScheduled || s == TherapyStatusInProgress
}

func (s TherapyStatus) Valid() bool {
	switch s {
	case TherapyStatusScheduled, TherapyStatusInProgress, TherapyStatusCompleted, TherapyStatusCancelled:
		return true
	}
	return false
}

type Therapy struct {
	Base
	ClinicalRecordID   uuid.UUID       `db:"clinical_record_id" json:"clinicalRecordId"`
	TherapyTypeID      uuid.UUID       `db:"therapy_type_id" json:"therapyTypeId"`
	Modality           Modality        `db:"modality" json:"therapyType"`
	PrescribedSessions int             `db:"prescribed_sessions" json:"prescribedSessions"`
	CompletedSessions  int             `db:"completed_sessions" json:"completedSessions"`
	StartDate          *time.Time      `db:"start_date" json:"startDate,omitempty"`
	EndDate            *time.Time      `db:"end_date" json:"endDate,omitempty"`
	Status             TherapyStatus   `db:"status" json:"status"`
	Frequency          string          `db:"frequency" json:"frequency"`
	District           string          `db:"district" json:"district"`
	Notes              string          `db:"notes" json:"notes"`
	Parameters         json.RawMessage `db:"parameters" json:"parameters"`
}

type CreateTherapyRequest struct {
	ClinicalRecordID   uuid.UUID       `json:"clinicalRecordId" binding:"required"`
	TherapyType        string          `json:"therapyType" binding:"required"`
	PrescribedSessions *int            `json:"prescribedSessions" binding:"omitempty,min=1"`
	StartDate          *time.Time      `json:"startDate"`
	Frequency          string          `json:"frequency"`
	District           string          `json:"district"`
	Notes              string          `json:"notes"`
	Parameters         json.RawMessage `json:"parameters"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type TherapyFilters struct {
	ClinicalRecordID *uuid.UUID
	Status           TherapyStatus
	Page
}

// TherapyDetail is a therapy together with its sessions.
type TherapyDetail struct {
	*Therapy
	Sessions []*TherapySession `json:"sessions"`
}

// VASImprovement summarises pain relief over completed sessions.
type VASImprovement struct {
	TherapyID      uuid.UUID `json:"therapyId"`
	Improvement    float64   `json:"improvement"`
	ScoredSessions int       `json:"scoredSessions"`
}

// TherapyAggregate is a therapy and all of its sessions, loaded under one lock.
type TherapyAggregate struct {
	Therapy  *Therapy
	Sessions []*TherapySession

	dirty map[uuid.UUID]bool
	added []*TherapySession
}

func NewTherapyAggregate(t *Therapy, sessions []*TherapySession) *TherapyAggregate {
	return &TherapyAggregate{Therapy: t, Sessions: sessions, dirty: map[uuid.UUID]bool{}}
}

// Added returns sessions created since the aggregate was loaded.
func (a *TherapyAggregate) Added() []*TherapySession {
	return a.added
}

// Changed returns previously persisted sessions that were modified.
func (a *TherapyAggregate) Changed() []*TherapySession {
	var out []*TherapySession
	for _, s := range a.Sessions {
		if a.dirty[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func (a *TherapyAggregate) Session(id uuid.UUID) (*TherapySession, error) {
	for _, s := range a.Sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.NotFound("therapy session", nil)
}

// ScheduleSession appends a new SCHEDULED session numbered after the existing ones.
func (a *TherapyAggregate) ScheduleSession(req ScheduleSessionRequest, now time.Time) (*TherapySession, error) {
	if !a.Therapy.Status.IsOpen() {
		return nil, apperrors.Conflict("therapy does not accept new sessions", nil)
	}
	if len(a.Sessions) >= a.Therapy.PrescribedSessions {
		return nil, apperrors.Conflict("maximum sessions reached", nil)
	}
	if err := ValidateVAS("vasScoreBefore", req.VASBefore); err != nil {
		return nil, err
	}

	s := &TherapySession{
		Base:          NewBase(now),
		TherapyID:     a.Therapy.ID,
		SessionNumber: len(a.Sessions) + 1,
		SessionDate:   req.SessionDate,
		Duration:      req.Duration,
		Status:        SessionStatusScheduled,
		VASBefore:     req.VASBefore,
		TherapistID:   req.TherapistID,
		Notes:         req.Notes,
	}
	a.Sessions = append(a.Sessions, s)
	a.added = append(a.added, s)
	a.Reconcile(now)
	return s, nil
}

// UpdateProgress applies progress fields to a session and completes it when requested.
func (a *TherapyAggregate) UpdateProgress(id uuid.UUID, req UpdateProgressRequest, now time.Time) (*TherapySession, error) {
	s, err := a.mutable(id)
	if err != nil {
		return nil, err
	}
	if err := ValidateVAS("vasScoreBefore", req.VASBefore); err != nil {
		return nil, err
	}
	if err := ValidateVAS("vasScoreAfter", req.VASAfter); err != nil {
		return nil, err
	}
	if req.Status != nil && *req.Status != SessionStatusCompleted {
		return nil, apperrors.Validation("invalid session progress", apperrors.FieldError{Field: "status", Message: "must be COMPLETED"})
	}

	req.apply(s)
	if req.Status != nil {
		if err := s.Complete(now); err != nil {
			return nil, err
		}
	}
	s.UpdatedAt = now
	a.touch(s)
	a.Reconcile(now)
	return s, nil
}

func (a *TherapyAggregate) CancelSession(id uuid.UUID, reason string, now time.Time) (*TherapySession, error) {
	s, err := a.mutable(id)
	if err != nil {
		return nil, err
	}
	if err := s.TransitionTo(SessionStatusCancelled); err != nil {
		return nil, err
	}
	s.prependNote("Cancelled", reason)
	s.UpdatedAt = now
	a.touch(s)
	a.Reconcile(now)
	return s, nil
}

func (a *TherapyAggregate) RescheduleSession(id uuid.UUID, req RescheduleRequest, now time.Time) (*TherapySession, error) {
	s, err := a.mutable(id)
	if err != nil {
		return nil, err
	}
	if req.NewDate.IsZero() {
		return nil, apperrors.Validation("invalid reschedule", apperrors.FieldError{Field: "newDate", Message: "is required"})
	}
	if err := s.TransitionTo(SessionStatusRescheduled); err != nil {
		return nil, err
	}
	previous := s.SessionDate
	s.SessionDate = req.NewDate
	reason := req.Reason
	if reason == "" {
		reason = "from " + previous.Format(time.RFC3339)
	}
	s.prependNote("Rescheduled", reason)
	s.UpdatedAt = now
	a.touch(s)
	a.Reconcile(now)
	return s, nil
}

func (a *TherapyAggregate) MarkMissed(id uuid.UUID, reason string, now time.Time) (*TherapySession, error) {
	s, err := a.mutable(id)
	if err != nil {
		return nil, err
	}
	if err := s.TransitionTo(SessionStatusMissed); err != nil {
		return nil, err
	}
	s.prependNote("Missed", reason)
	s.UpdatedAt = now
	a.touch(s)
	a.Reconcile(now)
	return s, nil
}

// Cancel cancels the therapy and every session that has not reached a terminal state.
func (a *TherapyAggregate) Cancel(reason string, now time.Time) error {
	if !a.Therapy.Status.IsOpen() {
		return apperrors.Conflict("therapy is already "+string(a.Therapy.Status), nil)
	}
	for _, s := range a.Sessions {
		if s.Status.IsTerminal() {
			continue
		}
		s.Status = SessionStatusCancelled
		s.prependNote("Cancelled", reason)
		s.UpdatedAt = now
		a.touch(s)
	}
	a.Therapy.Status = TherapyStatusCancelled
	if reason != "" {
		a.Therapy.Notes = prefixNote("Cancelled", reason, a.Therapy.Notes)
	}
	a.Therapy.EndDate = &now
	a.Therapy.UpdatedAt = now
	return nil
}

// Reconcile recounts completed sessions and advances the therapy status.
func (a *TherapyAggregate) Reconcile(now time.Time) {
	t := a.Therapy
	completed := 0
	for _, s := range a.Sessions {
		if s.Status == SessionStatusCompleted {
			completed++
		}
	}
	t.CompletedSessions = completed
	t.UpdatedAt = now

	if !t.Status.IsOpen() {
		return
	}
	if t.Status == TherapyStatusScheduled && len(a.Sessions) > 0 {
		t.Status = TherapyStatusInProgress
		if t.StartDate == nil {
			start := now
			t.StartDate = &start
		}
	}
	if t.PrescribedSessions > 0 && completed >= t.PrescribedSessions {
		t.Status = TherapyStatusCompleted
		end := now
		t.EndDate = &end
	}
}

// Improvement averages VAS before minus after over completed sessions scored on both ends.
func (a *TherapyAggregate) Improvement() VASImprovement {
	return ComputeVASImprovement(a.Therapy.ID, a.Sessions)
}

func ComputeVASImprovement(therapyID uuid.UUID, sessions []*TherapySession) VASImprovement {
	out := VASImprovement{TherapyID: therapyID}
	total := 0
	for _, s := range sessions {
		if s.Status != SessionStatusCompleted || s.VASBefore == nil || s.VASAfter == nil {
			continue
		}
		total += *s.VASBefore - *s.VASAfter
		out.ScoredSessions++
	}
	if out.ScoredSessions > 0 {
		out.Improvement = float64(total) / float64(out.ScoredSessions)
	}
	return out
}

func (a *TherapyAggregate) mutable(id uuid.UUID) (*TherapySession, error) {
	if !a.Therapy.Status.IsOpen() {
		return nil, apperrors.Conflict("therapy is "+string(a.Therapy.Status), nil)
	}
	s, err := a.Session(id)
	if err != nil {
		return nil, err
	}
	if s.Status.IsTerminal() {
		return nil, apperrors.Conflict("session is "+string(s.Status)+" and cannot be changed", nil)
	}
	return s, nil
}

func (a *TherapyAggregate) touch(s *TherapySession) {
	for _, n := range a.added {
		if n.ID == s.ID {
			return
		}
	}
	if a.dirty == nil {
		a.dirty = map[uuid.UUID]bool{}
	}
	a.dirty[s.ID] = true
}
