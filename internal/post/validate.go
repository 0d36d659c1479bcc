package post

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/kyrremann/plogtion/internal/models"
)

// ValidationError describes the first rule a record violated.
type ValidationError struct {
	Field string
	Tag   string
	msg   string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Malformed reports whether the value was present but unparseable, as
// opposed to missing.
func (e *ValidationError) Malformed() bool {
	return e.Tag == "datetime"
}

// Validator checks a resolved record before anything is published.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns the first violated rule, or nil.
func (v *Validator) Validate(record *models.PostRecord) error {
	err := v.validate.Struct(record)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fmt.Errorf("failed to validate post: %w", err)
	}

	first := errs[0]
	return &ValidationError{
		Field: first.StructNamespace(),
		Tag:   first.Tag(),
		msg:   describe(first),
	}
}

func describe(fe validator.FieldError) string {
	switch fe.StructNamespace() {
	case "PostRecord.Title":
		return "title cannot be empty"
	case "PostRecord.Categories":
		return "categories cannot be empty"
	case "PostRecord.Date":
		if fe.Tag() == "datetime" {
			return fmt.Sprintf("date %q must be formatted as YYYY-MM-DD", fe.Value())
		}
		return "date cannot be empty"
	case "PostRecord.Feature.ImageURL":
		return "missing featured image"
	}
	return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
}
