package model

type TherapyType struct {
	Base
	Code            Modality `db:"code" json:"code"`
	Name            string   `db:"name" json:"name"`
	Category        string   `db:"category" json:"category"`
	Description     string   `db:"description" json:"description"`
	DefaultDuration int      `db:"default_duration" json:"defaultDuration"`
	DefaultSessions int      `db:"default_sessions" json:"defaultSessions"`
	IsActive        bool     `db:"is_active" json:"isActive"`
}

type CreateTherapyTypeRequest struct {
	Code            string `json:"code" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Category        string `json:"category" binding:"required"`
	Description     string `json:"description"`
	DefaultDuration int    `json:"defaultDuration" binding:"required,min=1"`
	DefaultSessions int    `json:"defaultSessions" binding:"required,min=1"`
}

type UpdateTherapyTypeRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1"`
	Category        *string `json:"category" binding:"omitempty,min=1"`
	Description     *string `json:"description"`
	DefaultDuration *int    `json:"defaultDuration" binding:"omitempty,min=1"`
	DefaultSessions *int    `json:"defaultSessions" binding:"omitempty,min=1"`
}

func (u *UpdateTherapyTypeRequest) Apply(t *TherapyType) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.DefaultDuration != nil {
		t.DefaultDuration = *u.DefaultDuration
	}
	if u.DefaultSessions != nil {
		t.DefaultSessions = *u.DefaultSessions
	}
}

type TherapyTypeFilters struct {
	Category string
	Active   *bool
}

// DefaultCatalog is the seed set of therapy types, one per modality.
func DefaultCatalog() []TherapyType {
	return []TherapyType{
		{Code: ModalityLimfaterapy, Name: "Linfaterapia", Category: "Drenaggio", Description: "Drenaggio linfatico meccanico", DefaultDuration: 30, DefaultSessions: 10},
		{Code: ModalityLaserYAG145, Name: "Laser YAG 1064/145", Category: "Laserterapia", Description: "Laser Nd:YAG ad alta potenza", DefaultDuration: 15, DefaultSessions: 10},
		{Code: ModalityLaser810980, Name: "Laser 810/980", Category: "Laserterapia", Description: "Laser a diodo 810/980 nm", DefaultDuration: 15, DefaultSessions: 10},
		{Code: ModalityLaserScan, Name: "Laser Scan", Category: "Laserterapia", Description: "Laser a scansione", DefaultDuration: 20, DefaultSessions: 10},
		{Code: ModalityMagnetoterapia, Name: "Magnetoterapia", Category: "Elettromedicale", Description: "Campi magnetici pulsati", DefaultDuration: 30, DefaultSessions: 10},
		{Code: ModalityTENS, Name: "TENS", Category: "Elettroterapia", Description: "Elettrostimolazione nervosa transcutanea", DefaultDuration: 20, DefaultSessions: 10},
		{Code: ModalityUltrasuoni, Name: "Ultrasuoni", Category: "Elettromedicale", Description: "Terapia a ultrasuoni", DefaultDuration: 10, DefaultSessions: 10},
		{Code: ModalityElettrostimolazione, Name: "Elettrostimolazione", Category: "Elettroterapia", Description: "Elettrostimolazione muscolare", DefaultDuration: 20, DefaultSessions: 10},
		{Code: ModalityMassoterapia, Name: "Massoterapia", Category: "Terapia manuale", Description: "Massaggio terapeutico", DefaultDuration: 30, DefaultSessions: 10},
		{Code: ModalityMobilizzazioni, Name: "Mobilizzazioni", Category: "Terapia manuale", Description: "Mobilizzazioni articolari", DefaultDuration: 30, DefaultSessions: 10},
		{Code: ModalityTecarsin, Name: "Tecarsin", Category: "Tecarterapia", Description: "Tecarterapia capacitiva e resistiva", DefaultDuration: 20, DefaultSessions: 8},
		{Code: ModalitySIT, Name: "SIT", Category: "Infiltrativa", Description: "Sistema infiltrativo transdermico", DefaultDuration: 15, DefaultSessions: 5},
		{Code: ModalityTecalab, Name: "Tecalab", Category: "Tecarterapia", Description: "Tecarterapia con programmi guidati", DefaultDuration: 20, DefaultSessions: 8},
	}
}
