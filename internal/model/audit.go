package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     *uuid.UUID      `json:"userId,omitempty" db:"user_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entityType" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entityId" db:"entity_id"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	IPAddress  string          `json:"ipAddress" db:"ip_address"`
	UserAgent  string          `json:"userAgent" db:"user_agent"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionDelete     = "delete"
	AuditActionClose      = "close"
	AuditActionReopen     = "reopen"
	AuditActionActivate   = "activate"
	AuditActionDeactivate = "deactivate"
	AuditActionCancel     = "cancel"
	AuditActionComplete   = "complete"
	AuditActionReschedule = "reschedule"
	AuditActionMiss       = "miss"
	AuditActionLogin      = "login"
	AuditActionLogout     = "logout"

	// Entity types
	AuditEntityUser           = "user"
	AuditEntityPatient        = "patient"
	AuditEntityClinicalRecord = "clinical_record"
	AuditEntityTherapyType    = "therapy_type"
	AuditEntityTherapy        = "therapy"
	AuditEntitySession        = "therapy_session"
	AuditEntityAnamnesis      = "anamnesis"
	AuditEntityVitalSign      = "vital_sign"
)

type AuditFilters struct {
	UserID     *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	Action     string
	From       *time.Time
	To         *time.Time
	Page
}
