package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "OTHER"
)

type Patient struct {
	Base
	FiscalCode            string     `db:"fiscal_code" json:"fiscalCode"`
	FirstName             string     `db:"first_name" json:"firstName"`
	LastName              string     `db:"last_name" json:"lastName"`
	BirthDate             time.Time  `db:"birth_date" json:"birthDate"`
	BirthPlace            string     `db:"birth_place" json:"birthPlace"`
	Gender                Gender     `db:"gender" json:"gender"`
	Address               string     `db:"address" json:"address"`
	City                  string     `db:"city" json:"city"`
	PostalCode            string     `db:"postal_code" json:"postalCode"`
	Phone                 string     `db:"phone" json:"phone"`
	Mobile                string     `db:"mobile" json:"mobile"`
	Email                 string     `db:"email" json:"email"`
	PrivacyConsent        bool       `db:"privacy_consent" json:"privacyConsent"`
	MarketingConsent      bool       `db:"marketing_consent" json:"marketingConsent"`
	DataProcessingConsent bool       `db:"data_processing_consent" json:"dataProcessingConsent"`
	Notes                 string     `db:"notes" json:"notes"`
	DeletedAt             *time.Time `db:"deleted_at" json:"-"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) IsDeleted() bool {
	return p.DeletedAt != nil
}

type CreatePatientRequest struct {
	FiscalCode            string    `json:"fiscalCode" binding:"required,fiscalcode"`
	FirstName             string    `json:"firstName" binding:"required,max=100"`
	LastName              string    `json:"lastName" binding:"required,max=100"`
	BirthDate             time.Time `json:"birthDate" binding:"required"`
	BirthPlace            string    `json:"birthPlace" binding:"max=100"`
	Gender                Gender    `json:"gender" binding:"required,oneof=M F OTHER"`
	Address               string    `json:"address" binding:"max=255"`
	City                  string    `json:"city" binding:"max=100"`
	PostalCode            string    `json:"postalCode" binding:"max=10"`
	Phone                 string    `json:"phone" binding:"max=30"`
	Mobile                string    `json:"mobile" binding:"max=30"`
	Email                 string    `json:"email" binding:"omitempty,email"`
	PrivacyConsent        bool      `json:"privacyConsent"`
	MarketingConsent      bool      `json:"marketingConsent"`
	DataProcessingConsent bool      `json:"dataProcessingConsent"`
	Notes                 string    `json:"notes"`
}

type UpdatePatientRequest struct {
	FiscalCode            *string    `json:"fiscalCode" binding:"omitempty,fiscalcode"`
	FirstName             *string    `json:"firstName" binding:"omitempty,min=1,max=100"`
	LastName              *string    `json:"lastName" binding:"omitempty,min=1,max=100"`
	BirthDate             *time.Time `json:"birthDate"`
	BirthPlace            *string    `json:"birthPlace" binding:"omitempty,max=100"`
	Gender                *Gender    `json:"gender" binding:"omitempty,oneof=M F OTHER"`
	Address               *string    `json:"address" binding:"omitempty,max=255"`
	City                  *string    `json:"city" binding:"omitempty,max=100"`
	PostalCode            *string    `json:"postalCode" binding:"omitempty,max=10"`
	Phone                 *string    `json:"phone" binding:"omitempty,max=30"`
	Mobile                *string    `json:"mobile" binding:"omitempty,max=30"`
	Email                 *string    `json:"email" binding:"omitempty,email"`
	PrivacyConsent        *bool      `json:"privacyConsent"`
	MarketingConsent      *bool      `json:"marketingConsent"`
	DataProcessingConsent *bool      `json:"dataProcessingConsent"`
	Notes                 *string    `json:"notes"`
}

// Apply copies the set fields onto p.
func (r *UpdatePatientRequest) Apply(p *Patient) {
	if r.FiscalCode != nil {
		p.FiscalCode = strings.ToUpper(*r.FiscalCode)
	}
	if r.FirstName != nil {
		p.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		p.LastName = *r.LastName
	}
	if r.BirthDate != nil {
		p.BirthDate = *r.BirthDate
	}
	if r.BirthPlace != nil {
		p.BirthPlace = *r.BirthPlace
	}
	if r.Gender != nil {
		p.Gender = *r.Gender
	}
	if r.Address != nil {
		p.Address = *r.Address
	}
	if r.City != nil {
		p.City = *r.City
	}
	if r.PostalCode != nil {
		p.PostalCode = *r.PostalCode
	}
	if r.Phone != nil {
		p.Phone = *r.Phone
	}
	if r.Mobile != nil {
		p.Mobile = *r.Mobile
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	if r.PrivacyConsent != nil {
		p.PrivacyConsent = *r.PrivacyConsent
	}
	if r.MarketingConsent != nil {
		p.MarketingConsent = *r.MarketingConsent
	}
	if r.DataProcessingConsent != nil {
		p.DataProcessingConsent = *r.DataProcessingConsent
	}
	if r.Notes != nil {
		p.Notes = *r.Notes
	}
}

type PatientFilters struct {
	Search string
	Page
}

// PatientRef is the identity slice embedded in read models.
type PatientRef struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	FiscalCode string    `json:"fiscalCode"`
}
