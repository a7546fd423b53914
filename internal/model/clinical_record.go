package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const recordNumberPrefix = "CR"

type ClinicalRecord struct {
	Base
	PatientID            uuid.UUID  `db:"patient_id" json:"patientId"`
	RecordNumber         string     `db:"record_number" json:"recordNumber"`
	AcceptanceDate       time.Time  `db:"acceptance_date" json:"acceptanceDate"`
	Diagnosis            string     `db:"diagnosis" json:"diagnosis"`
	DiagnosticDetails    string     `db:"diagnostic_details" json:"diagnosticDetails"`
	Symptomatology       string     `db:"symptomatology" json:"symptomatology"`
	ObjectiveExamination string     `db:"objective_examination" json:"objectiveExamination"`
	InstrumentalExams    string     `db:"instrumental_exams" json:"instrumentalExams"`
	ClinicalEvaluation   string     `db:"clinical_evaluation" json:"clinicalEvaluation"`
	InterventionDate     *time.Time `db:"intervention_date" json:"interventionDate,omitempty"`
	InterventionDoctor   *string    `db:"intervention_doctor" json:"interventionDoctor,omitempty"`
	IsActive             bool       `db:"is_active" json:"isActive"`
	ClosedAt             *time.Time `db:"closed_at" json:"closedAt,omitempty"`
}

func (r *ClinicalRecord) IsOpen() bool {
	return r.ClosedAt == nil
}

// Close marks the record closed. Closing an already closed record moves closedAt to now.
func (r *ClinicalRecord) Close(now time.Time) {
	r.ClosedAt = &now
	r.IsActive = false
	r.UpdatedAt = now
}

func (r *ClinicalRecord) Reopen(now time.Time) {
	r.ClosedAt = nil
	r.IsActive = true
	r.UpdatedAt = now
}

// RecordNumberPrefix is the per-year prefix, e.g. "CR-2025-".
func RecordNumberPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", recordNumberPrefix, year)
}

// NextRecordNumber returns the number following the highest numeric suffix
// among existing numbers carrying this year's prefix.
func NextRecordNumber(year int, existing []string) string {
	prefix := RecordNumberPrefix(year)
	highest := 0
	for _, n := range existing {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(n, prefix))
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1)
}

type CreateClinicalRecordRequest struct {
	PatientID            uuid.UUID  `json:"patientId" binding:"required"`
	AcceptanceDate       *time.Time `json:"acceptanceDate"`
	Diagnosis            string     `json:"diagnosis" binding:"required"`
	DiagnosticDetails    string     `json:"diagnosticDetails"`
	Symptomatology       string     `json:"symptomatology"`
	ObjectiveExamination string     `json:"objectiveExamination"`
	InstrumentalExams    string     `json:"instrumentalExams"`
	ClinicalEvaluation   string     `json:"clinicalEvaluation"`
	InterventionDate     *time.Time `json:"interventionDate"`
	InterventionDoctor   *string    `json:"interventionDoctor"`
}

type UpdateClinicalRecordRequest struct {
	AcceptanceDate       *time.Time `json:"acceptanceDate"`
	Diagnosis            *string    `json:"diagnosis" binding:"omitempty,min=1"`
	DiagnosticDetails    *string    `json:"diagnosticDetails"`
	Symptomatology       *string    `json:"symptomatology"`
	ObjectiveExamination *string    `json:"objectiveExamination"`
	InstrumentalExams    *string    `json:"instrumentalExams"`
	ClinicalEvaluation   *string    `json:"clinicalEvaluation"`
	InterventionDate     *time.Time `json:"interventionDate"`
	InterventionDoctor   *string    `json:"interventionDoctor"`
}

func (u *UpdateClinicalRecordRequest) Apply(r *ClinicalRecord) {
	if u.AcceptanceDate != nil {
		r.AcceptanceDate = *u.AcceptanceDate
	}
	if u.Diagnosis != nil {
		r.Diagnosis = *u.Diagnosis
	}
	if u.DiagnosticDetails != nil {
		r.DiagnosticDetails = *u.DiagnosticDetails
	}
	if u.Symptomatology != nil {
		r.Symptomatology = *u.Symptomatology
	}
	if u.ObjectiveExamination != nil {
		r.ObjectiveExamination = *u.ObjectiveExamination
	}
	if u.InstrumentalExams != nil {
		r.InstrumentalExams = *u.InstrumentalExams
	}
	if u.ClinicalEvaluation != nil {
		r.ClinicalEvaluation = *u.ClinicalEvaluation
	}
	if u.InterventionDate != nil {
		r.InterventionDate = u.InterventionDate
	}
	if u.InterventionDoctor != nil {
		r.InterventionDoctor = u.InterventionDoctor
	}
}

type RecordFilters struct {
	PatientID *uuid.UUID
	Active    *bool
	Page
}

// Anamnesis is the intake history taken for a clinical record.
type Anamnesis struct {
	Base
	ClinicalRecordID   uuid.UUID `db:"clinical_record_id" json:"clinicalRecordId"`
	RecordedAt         time.Time `db:"recorded_at" json:"recordedAt"`
	ChiefComplaint     string    `db:"chief_complaint" json:"chiefComplaint"`
	PresentIllness     string    `db:"present_illness" json:"presentIllness"`
	PastMedicalHistory string    `db:"past_medical_history" json:"pastMedicalHistory"`
	Medications        string    `db:"medications" json:"medications"`
	Allergies          string    `db:"allergies" json:"allergies"`
	FamilyHistory      string    `db:"family_history" json:"familyHistory"`
	SocialHistory      string    `db:"social_history" json:"socialHistory"`
	Notes              string    `db:"notes" json:"notes"`
}

type CreateAnamnesisRequest struct {
	RecordedAt         *time.Time `json:"recordedAt"`
	ChiefComplaint     string     `json:"chiefComplaint" binding:"required"`
	PresentIllness     string     `json:"presentIllness"`
	PastMedicalHistory string     `json:"pastMedicalHistory"`
	Medications        string     `json:"medications"`
	Allergies          string     `json:"allergies"`
	FamilyHistory      string     `json:"familyHistory"`
	SocialHistory      string     `json:"socialHistory"`
	Notes              string     `json:"notes"`
}

type VitalSign struct {
	Base
	ClinicalRecordID uuid.UUID `db:"clinical_record_id" json:"clinicalRecordId"`
	MeasuredAt       time.Time `db:"measured_at" json:"measuredAt"`
	BloodPressure    *string   `db:"blood_pressure" json:"bloodPressure,omitempty"`
	HeartRate        *int      `db:"heart_rate" json:"heartRate,omitempty"`
	RespiratoryRate  *int      `db:"respiratory_rate" json:"respiratoryRate,omitempty"`
	Temperature      *float64  `db:"temperature" json:"temperature,omitempty"`
	OxygenSaturation *int      `db:"oxygen_saturation" json:"oxygenSaturation,omitempty"`
	Weight           *float64  `db:"weight" json:"weight,omitempty"`
	Height           *float64  `db:"height" json:"height,omitempty"`
	Notes            string    `db:"notes" json:"notes"`
}

type CreateVitalSignRequest struct {
	MeasuredAt       *time.Time `json:"measuredAt"`
	BloodPressure    *string    `json:"bloodPressure" binding:"omitempty,max=20"`
	HeartRate        *int       `json:"heartRate" binding:"omitempty,min=20,max=250"`
	RespiratoryRate  *int       `json:"respiratoryRate" binding:"omitempty,min=4,max=80"`
	Temperature      *float64   `json:"temperature" binding:"omitempty,min=30,max=45"`
	OxygenSaturation *int       `json:"oxygenSaturation" binding:"omitempty,min=50,max=100"`
	Weight           *float64   `json:"weight" binding:"omitempty,gt=0"`
	Height           *float64   `json:"height" binding:"omitempty,gt=0"`
	Notes            string     `json:"notes"`
}
