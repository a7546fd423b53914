package model

import (
	"bytes"
	"encoding/json"

	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
	"github.com/jwalitptl/physio-api/pkg/validator"
)

// Modality is the therapy type code that selects a parameter schema.
type Modality string

const (
	ModalityLimfaterapy         Modality = "LIMFATERAPY"
	ModalityLaserYAG145         Modality = "LASER_YAG_145"
	ModalityLaser810980         Modality = "LASER_810_980"
	ModalityLaserScan           Modality = "LASER_SCAN"
	ModalityMagnetoterapia      Modality = "MAGNETOTERAPIA"
	ModalityTENS                Modality = "TENS"
	ModalityUltrasuoni          Modality = "ULTRASUONI"
	ModalityElettrostimolazione Modality = "ELETTROSTIMOLAZIONE"
	ModalityMassoterapia        Modality = "MASSOTERAPIA"
	ModalityMobilizzazioni      Modality = "MOBILIZZAZIONI"
	ModalityTecarsin            Modality = "TECARSIN"
	ModalitySIT                 Modality = "SIT"
	ModalityTecalab             Modality = "TECALAB"
)

// ErrInvalidTherapyType is returned for codes outside the registry.
var ErrInvalidTherapyType = apperrors.Validation("invalid therapy type", apperrors.FieldError{Field: "therapyType", Message: "is not a known therapy type"})

// TherapyParams is implemented by every modality parameter record.
type TherapyParams interface {
	Modality() Modality
}

// SessionCounter is implemented by parameter records that carry their own session count.
type SessionCounter interface {
	SessionCount() int
}

type LimfaterapyParams struct {
	Sessions    int    `json:"sessions" validate:"required,min=1"`
	Program     string `json:"program" validate:"required"`
	Mode        string `json:"mode" validate:"required,oneof=auto manual"`
	Description string `json:"description,omitempty"`
}

func (LimfaterapyParams) Modality() Modality  { return ModalityLimfaterapy }
func (p LimfaterapyParams) SessionCount() int { return p.Sessions }

// LaserParams covers both high-power laser modalities.
type LaserParams struct {
	Watt          float64 `json:"watt" validate:"required,gt=0"`
	JoulePerPulse float64 `json:"joulePerPulse" validate:"required,gt=0"`
	Pulse         float64 `json:"pulse" validate:"required,gt=0"`
	Dose          float64 `json:"dose" validate:"required,gt=0"`
	District      string  `json:"district" validate:"required"`

	code Modality
}

func (p LaserParams) Modality() Modality { return p.code }

type LaserScanParams struct {
	Power          float64  `json:"power" validate:"required,gt=0"`
	Drainage       *bool    `json:"drainage" validate:"required"`
	NormalMode     *bool    `json:"normalMode" validate:"required"`
	Radiofrequency *float64 `json:"radiofrequency,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	District       string   `json:"district" validate:"required"`
}

func (LaserScanParams) Modality() Modality { return ModalityLaserScan }

type MagnetoterapiaParams struct {
	Program   *int    `json:"program" validate:"required"`
	Hertz     float64 `json:"hertz" validate:"required,gt=0"`
	Intensity float64 `json:"intensity" validate:"required,gt=0"`
	Time      float64 `json:"time" validate:"required,gt=0"`
}

func (MagnetoterapiaParams) Modality() Modality { return ModalityMagnetoterapia }

type TENSParams struct {
	Time     float64 `json:"time" validate:"required,gt=0"`
	Type     string  `json:"type" validate:"required"`
	District string  `json:"district" validate:"required"`
}

func (TENSParams) Modality() Modality { return ModalityTENS }

type UltrasuoniParams struct {
	MHz     float64 `json:"mhz" validate:"required,gt=0"`
	Watt    float64 `json:"watt" validate:"required,gt=0"`
	Time    float64 `json:"time" validate:"required,gt=0"`
	InWater *bool   `json:"inWater" validate:"required"`
}

func (UltrasuoniParams) Modality() Modality { return ModalityUltrasuoni }

type ElettrostimolazioneParams struct {
	District  string  `json:"district" validate:"required"`
	Program   string  `json:"program" validate:"required"`
	Intensity float64 `json:"intensity" validate:"required,gt=0"`
}

func (ElettrostimolazioneParams) Modality() Modality { return ModalityElettrostimolazione }

type MassoterapiaParams struct {
	Type     string  `json:"type" validate:"required"`
	District string  `json:"district" validate:"required"`
	Duration float64 `json:"duration" validate:"required,gt=0"`
}

func (MassoterapiaParams) Modality() Modality { return ModalityMassoterapia }

type MobilizzazioniParams struct {
	District string `json:"district" validate:"required"`
	Type     string `json:"type" validate:"required"`
	Notes    string `json:"notes,omitempty"`
}

func (MobilizzazioniParams) Modality() Modality { return ModalityMobilizzazioni }

type TecarsinParams struct {
	Program string  `json:"program" validate:"required"`
	Power   float64 `json:"power" validate:"required,gt=0"`
	Time    float64 `json:"time" validate:"required,gt=0"`
}

func (TecarsinParams) Modality() Modality { return ModalityTecarsin }

type SITParams struct {
	District string `json:"district" validate:"required"`
	Drug     string `json:"drug" validate:"required"`
}

func (SITParams) Modality() Modality { return ModalitySIT }

type TecalabParams struct {
	Sessions int    `json:"sessions" validate:"required,min=1"`
	Program  string `json:"program" validate:"required"`
}

func (TecalabParams) Modality() Modality  { return ModalityTecalab }
func (p TecalabParams) SessionCount() int { return p.Sessions }

var paramsRegistry = map[Modality]func() TherapyParams{
	ModalityLimfaterapy:         func() TherapyParams { return &LimfaterapyParams{} },
	ModalityLaserYAG145:         func() TherapyParams { return &LaserParams{code: ModalityLaserYAG145} },
	ModalityLaser810980:         func() TherapyParams { return &LaserParams{code: ModalityLaser810980} },
	ModalityLaserScan:           func() TherapyParams { return &LaserScanParams{} },
	ModalityMagnetoterapia:      func() TherapyParams { return &MagnetoterapiaParams{} },
	ModalityTENS:                func() TherapyParams { return &TENSParams{} },
	ModalityUltrasuoni:          func() TherapyParams { return &UltrasuoniParams{} },
	ModalityElettrostimolazione: func() TherapyParams { return &ElettrostimolazioneParams{} },
	ModalityMassoterapia:        func() TherapyParams { return &MassoterapiaParams{} },
	ModalityMobilizzazioni:      func() TherapyParams { return &MobilizzazioniParams{} },
	ModalityTecarsin:            func() TherapyParams { return &TecarsinParams{} },
	ModalitySIT:                 func() TherapyParams { return &SITParams{} },
	ModalityTecalab:             func() TherapyParams { return &TecalabParams{} },
}

// Modalities lists every registered code.
func Modalities() []Modality {
	return []Modality{
		ModalityLimfaterapy, ModalityLaserYAG145, ModalityLaser810980, ModalityLaserScan,
		ModalityMagnetoterapia, ModalityTENS, ModalityUltrasuoni, ModalityElettrostimolazione,
		ModalityMassoterapia, ModalityMobilizzazioni, ModalityTecarsin, ModalitySIT, ModalityTecalab,
	}
}

func ParseModality(code string) (Modality, error) {
	m := Modality(code)
	if _, ok := paramsRegistry[m]; !ok {
		return "", ErrInvalidTherapyType
	}
	return m, nil
}

// DecodeParameters decodes raw into the record registered for m, rejecting
// unknown and missing fields.
func DecodeParameters(m Modality, raw json.RawMessage) (TherapyParams, error) {
	newParams, ok := paramsRegistry[m]
	if !ok {
		return nil, ErrInvalidTherapyType
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, apperrors.Validation("invalid therapy parameters", apperrors.FieldError{Field: "parameters", Message: "is required"})
	}

	params := newParams()
	if err := validator.DecodeStrict(raw, params); err != nil {
		return nil, prefixFields(validator.Translate("invalid therapy parameters", err))
	}
	if err := validator.Engine().Struct(params); err != nil {
		return nil, prefixFields(validator.Translate("invalid therapy parameters", err))
	}
	return params, nil
}

func prefixFields(err error) error {
	appErr, ok := apperrors.As(err)
	if !ok {
		return err
	}
	fields := make([]apperrors.FieldError, len(appErr.Fields))
	for i, f := range appErr.Fields {
		if f.Field == "" {
			f.Field = "parameters"
		} else {
			f.Field = "parameters." + f.Field
		}
		fields[i] = f
	}
	return apperrors.Validation(appErr.Message, fields...)
}
