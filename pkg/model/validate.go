package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("prop"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// ValidationError lists every property that failed validation.
type ValidationError struct {
	Problems []*FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "invalid monitor: " + strings.Join(msgs, "; ")
}

// Validate checks property constraints that go beyond the value shape.
// Unset properties are not checked.
func (m Monitor) Validate() error {
	err := validate.Struct(m)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Problems = append(out.Problems, &FieldError{
			Property: strings.TrimPrefix(fe.Namespace(), "Monitor."),
			Reason:   describe(fe),
		})
	}
	return out
}

// ValidateForCreate checks that the properties a new monitor needs are
// present, then runs Validate.
func (m Monitor) ValidateForCreate() error {
	var missing []*FieldError
	if m.Name == "" {
		missing = append(missing, &FieldError{Property: PropName, Reason: "is required"})
	}
	if m.URI == "" {
		missing = append(missing, &FieldError{Property: PropURI, Reason: "is required"})
	}
	if len(missing) > 0 {
		return &ValidationError{Problems: missing}
	}
	return m.Validate()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "http_url":
		return fmt.Sprintf("must be an http or https URL, got %q", fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
