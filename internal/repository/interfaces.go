package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/physio-api/internal/model"
)

// All repository interfaces in one file
type (
	// PatientRepository never returns soft-deleted rows.
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
		ListAll(ctx context.Context) ([]*model.Patient, error)
	}

	ClinicalRecordRepository interface {
		// Create assigns the next record number for the year the record is created in.
		Create(ctx context.Context, record *model.ClinicalRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.ClinicalRecord, error)
		Update(ctx context.Context, record *model.ClinicalRecord) error
		List(ctx context.Context, filters *model.RecordFilters) ([]*model.ClinicalRecord, int, error)
		ListAll(ctx context.Context) ([]*model.ClinicalRecord, error)
	}

	AnamnesisRepository interface {
		Create(ctx context.Context, a *model.Anamnesis) error
		ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*model.Anamnesis, error)
	}

	VitalSignRepository interface {
		Create(ctx context.Context, v *model.VitalSign) error
		ListByRecord(ctx context.Context, recordID uuid.UUID) ([]*model.VitalSign, error)
	}

	TherapyTypeRepository interface {
		Create(ctx context.Context, t *model.TherapyType) error
		Get(ctx context.Context, id uuid.UUID) (*model.TherapyType, error)
		GetByCode(ctx context.Context, code model.Modality) (*model.TherapyType, error)
		Update(ctx context.Context, t *model.TherapyType) error
		List(ctx context.Context, filters *model.TherapyTypeFilters) ([]*model.TherapyType, error)
		// CountOpenTherapies counts SCHEDULED and IN_PROGRESS therapies of the type.
		CountOpenTherapies(ctx context.Context, id uuid.UUID) (int, error)
	}

	TherapyRepository interface {
		Create(ctx context.Context, therapy *model.Therapy) error
		Get(ctx context.Context, id uuid.UUID) (*model.Therapy, error)
		List(ctx context.Context, filters *model.TherapyFilters) ([]*model.Therapy, int, error)
		ListAll(ctx context.Context) ([]*model.Therapy, error)
		ListSessions(ctx context.Context, therapyID uuid.UUID) ([]*model.TherapySession, error)
		GetSession(ctx context.Context, sessionID uuid.UUID) (*model.TherapySession, error)
		// Mutate locks the therapy row, loads its sessions, applies fn and
		// persists every change in the same transaction.
		Mutate(ctx context.Context, therapyID uuid.UUID, fn func(*model.TherapyAggregate) error) (*model.TherapyAggregate, error)
		// Delete removes the therapy and its sessions.
		Delete(ctx context.Context, id uuid.UUID) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		List(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending locks up to limit due events for fn; status updates made
		// through the handle commit with the claim.
		ClaimPending(ctx context.Context, limit int, fn func(OutboxTx, []*model.OutboxEvent) error) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// OutboxTx updates claimed events inside the claiming transaction.
	OutboxTx interface {
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error
	}

	// TokenStore tracks revoked token ids until they would have expired anyway.
	TokenStore interface {
		Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}
)
