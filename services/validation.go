package services

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Validator checks struct tags and reports fields by their JSON name.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct returns a *ValidationError describing every failed rule, or nil.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate")
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "hexcolor":
		return fmt.Sprintf("The %s field must be a valid hex color.", field)
	case "alphanum":
		return fmt.Sprintf("The %s field must only contain letters and numbers.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}
