package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

const (
	VASMin = 0
	VASMax = 10
)

type SessionStatus string

const (
	SessionStatusScheduled   SessionStatus = "SCHEDULED"
	SessionStatusCompleted   SessionStatus = "COMPLETED"
	SessionStatusCancelled   SessionStatus = "CANCELLED"
	SessionStatusMissed      SessionStatus = "MISSED"
	SessionStatusRescheduled SessionStatus = "RESCHEDULED"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusScheduled:   {SessionStatusCompleted, SessionStatusCancelled, SessionStatusRescheduled, SessionStatusMissed},
	SessionStatusRescheduled: {SessionStatusCompleted, SessionStatusCancelled, SessionStatusRescheduled, SessionStatusMissed},
	SessionStatusMissed:      {SessionStatusRescheduled, SessionStatusCancelled},
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TherapySession struct {
	Base
	TherapyID          uuid.UUID     `db:"therapy_id" json:"therapyId"`
	SessionNumber      int           `db:"session_number" json:"sessionNumber"`
	SessionDate        time.Time     `db:"session_date" json:"sessionDate"`
	Duration           int           `db:"duration" json:"duration"`
	Status             SessionStatus `db:"status" json:"status"`
	VASBefore          *int          `db:"vas_score_before" json:"vasScoreBefore,omitempty"`
	VASAfter           *int          `db:"vas_score_after" json:"vasScoreAfter,omitempty"`
	TherapistID        *uuid.UUID    `db:"therapist_id" json:"therapistId,omitempty"`
	Notes              string        `db:"notes" json:"notes"`
	PatientSignature   string        `db:"patient_signature" json:"patientSignature,omitempty"`
	TherapistSignature string        `db:"therapist_signature" json:"therapistSignature,omitempty"`
	SignedAt           *time.Time    `db:"signed_at" json:"signedAt,omitempty"`
}

func (s *TherapySession) TransitionTo(next SessionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return apperrors.Conflict(fmt.Sprintf("cannot move session from %s to %s", s.Status, next), nil)
	}
	s.Status = next
	return nil
}

// Complete requires the post-treatment score and both signatures.
func (s *TherapySession) Complete(now time.Time) error {
	var missing []apperrors.FieldError
	if s.VASAfter == nil {
		missing = append(missing, apperrors.FieldError{Field: "vasScoreAfter", Message: "is required"})
	}
	if s.PatientSignature == "" {
		missing = append(missing, apperrors.FieldError{Field: "patientSignature", Message: "is required"})
	}
	if s.TherapistSignature == "" {
		missing = append(missing, apperrors.FieldError{Field: "therapistSignature", Message: "is required"})
	}
	if len(missing) > 0 {
		return apperrors.Validation("session cannot be completed", missing...)
	}
	if err := s.TransitionTo(SessionStatusCompleted); err != nil {
		return err
	}
	s.SignedAt = &now
	return nil
}

func (s *TherapySession) prependNote(label, reason string) {
	if reason == "" {
		return
	}
	s.Notes = prefixNote(label, reason, s.Notes)
}

func prefixNote(label, reason, notes string) string {
	line := fmt.Sprintf("[%s] %s", label, reason)
	if notes == "" {
		return line
	}
	return line + "\n" + notes
}

// ValidateVAS rejects scores outside the 0-10 scale.
func ValidateVAS(field string, v *int) error {
	if v == nil || (*v >= VASMin && *v <= VASMax) {
		return nil
	}
	return apperrors.Validation("invalid pain score", apperrors.FieldError{
		Field:   field,
		Message: fmt.Sprintf("must be between %d and %d", VASMin, VASMax),
	})
}

type ScheduleSessionRequest struct {
	TherapyID   uuid.UUID  `json:"therapyId" binding:"required"`
	SessionDate time.Time  `json:"sessionDate" binding:"required"`
	Duration    int        `json:"duration" binding:"omitempty,min=1"`
	VASBefore   *int       `json:"vasScoreBefore" binding:"omitempty,min=0,max=10"`
	TherapistID *uuid.UUID `json:"therapistId"`
	Notes       string     `json:"notes"`
}

type UpdateProgressRequest struct {
	Duration           *int           `json:"duration" binding:"omitempty,min=1"`
	VASBefore          *int           `json:"vasScoreBefore" binding:"omitempty,min=0,max=10"`
	VASAfter           *int           `json:"vasScoreAfter" binding:"omitempty,min=0,max=10"`
	TherapistID        *uuid.UUID     `json:"therapistId"`
	Notes              *string        `json:"notes"`
	PatientSignature   *string        `json:"patientSignature"`
	TherapistSignature *string        `json:"therapistSignature"`
	Status             *SessionStatus `json:"status"`
}

func (r UpdateProgressRequest) apply(s *TherapySession) {
	if r.Duration != nil {
		s.Duration = *r.Duration
	}
	if r.VASBefore != nil {
		s.VASBefore = r.VASBefore
	}
	if r.VASAfter != nil {
		s.VASAfter = r.VASAfter
	}
	if r.TherapistID != nil {
		s.TherapistID = r.TherapistID
	}
	if r.Notes != nil {
		s.Notes = *r.Notes
	}
	if r.PatientSignature != nil {
		s.PatientSignature = *r.PatientSignature
	}
	if r.TherapistSignature != nil {
		s.TherapistSignature = *r.TherapistSignature
	}
}

type RescheduleRequest struct {
	NewDate time.Time `json:"newDate" binding:"required"`
	Reason  string    `json:"reason"`
}
