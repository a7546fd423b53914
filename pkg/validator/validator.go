package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Engine returns the process-wide validator, configured to report json field names.
func Engine() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		Configure(instance)
	})
	return instance
}

// Configure registers json tag names and custom rules on v.
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("fiscalcode", func(fl validator.FieldLevel) bool {
		return IsFiscalCode(fl.Field().String())
	})
}

// IsFiscalCode checks the 16-character alphanumeric shape of an Italian codice fiscale.
func IsFiscalCode(s string) bool {
	if len(s) != 16 {
		return false
	}
	for _, r := range strings.ToUpper(s) {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Struct validates obj and converts failures to a validation AppError.
func Struct(obj interface{}) error {
	if err := Engine().Struct(obj); err != nil {
		return Translate("validation failed", err)
	}
	return nil
}

// Translate turns validator and json decoding failures into field-level errors.
func Translate(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apperrors.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperrors.FieldError{
				Field:   fieldPath(fe),
				Message: describe(fe),
			})
		}
		return apperrors.Validation(message, fields...)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperrors.Validation(message, apperrors.FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
		})
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apperrors.Validation("malformed JSON body")
	}

	if field, ok := unknownField(err); ok {
		return apperrors.Validation(message, apperrors.FieldError{
			Field:   field,
			Message: "is not allowed",
		})
	}

	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Validation(message, apperrors.FieldError{Message: err.Error()})
}

// DecodeStrict unmarshals raw into dst rejecting unknown fields and trailing data.
func DecodeStrict(raw []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func unknownField(err error) (string, bool) {
	const prefix = "json: unknown field "
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return "", false
	}
	return strings.Trim(strings.TrimPrefix(msg, prefix), `"`), true
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email"
	case "fiscalcode":
		return "must be a 16-character fiscal code"
	case "len":
		return fmt.Sprintf("must be %s characters long", fe.Param())
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}
