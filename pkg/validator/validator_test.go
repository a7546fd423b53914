package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

type sample struct {
	Email      string   `json:"email" validate:"required,email"`
	Watt       float64  `json:"watt" validate:"required,gt=0"`
	FiscalCode string   `json:"fiscalCode" validate:"omitempty,fiscalcode"`
	Mode       string   `json:"mode" validate:"required,oneof=auto manual"`
	Flag       *bool    `json:"flag" validate:"required"`
	Optional   *float64 `json:"optional,omitempty"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(&sample{Email: "nope", Mode: "turbo", FiscalCode: "RSSMRA"})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrValidation, appErr.Code)

	fields := map[string]string{}
	for _, f := range appErr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "must be a valid email", fields["email"])
	assert.Equal(t, "is required", fields["watt"])
	assert.Equal(t, "must be one of [auto manual]", fields["mode"])
	assert.Equal(t, "is required", fields["flag"])
	assert.Contains(t, fields, "fiscalCode")
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	var dst sample
	err := DecodeStrict([]byte(`{"email":"a@b.it","bogus":1}`), &dst)
	require.Error(t, err)

	appErr, ok := apperrors.As(Translate("invalid parameters", err))
	require.True(t, ok)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "bogus", appErr.Fields[0].Field)
}

func TestDecodeStrictReportsTypeMismatch(t *testing.T) {
	var dst sample
	err := DecodeStrict([]byte(`{"watt":"high"}`), &dst)
	require.Error(t, err)

	appErr, ok := apperrors.As(Translate("invalid parameters", err))
	require.True(t, ok)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "watt", appErr.Fields[0].Field)
}

func TestIsFiscalCode(t *testing.T) {
	assert.True(t, IsFiscalCode("RSSMRA80A01H501U"))
	assert.True(t, IsFiscalCode("rssmra80a01h501u"))
	assert.False(t, IsFiscalCode("RSSMRA80A01H501"))
	assert.False(t, IsFiscalCode("RSSMRA80A01H50-U"))
}
