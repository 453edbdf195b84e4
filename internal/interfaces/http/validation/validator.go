// Package validation checks request bodies at the HTTP boundary.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"typegraph-backend/internal/domain/node"
	"typegraph-backend/internal/interfaces/http/dto"
	"typegraph-backend/internal/repository/cypher"
)

// Validator wraps go-playground/validator with the API's custom rules.
type Validator struct {
	validate *validator.Validate
}

var (
	instance *Validator
	once     sync.Once
)

// GetValidator returns the shared validator.
func GetValidator() *Validator {
	once.Do(func() {
		instance = NewValidator()
	})
	return instance
}

// NewValidator creates a validator with the custom rules registered.
func NewValidator() *Validator {
	v := &Validator{validate: validator.New()}

	// error messages use JSON field names
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustom("identifier", identifierValidator)
	v.RegisterCustom("primitive", primitiveValidator)
	return v
}

// RegisterCustom adds a validation rule under tag.
func (v *Validator) RegisterCustom(tag string, fn validator.Func) {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Validate checks a struct and returns dto.ValidationErrors on failure.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := dto.ValidationErrors{}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, dto.ValidationError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "identifier":
		return "must contain only letters, digits and underscore and not start with a digit"
	case "primitive":
		return "must be one of string, boolean, date"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

func identifierValidator(fl validator.FieldLevel) bool {
	return cypher.ValidateIdentifier(cypher.KindProperty, fl.Field().String()) == nil
}

func primitiveValidator(fl validator.FieldLevel) bool {
	_, err := node.ParsePrimitiveType(fl.Field().String())
	return err == nil
}
