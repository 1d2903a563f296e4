// Package validate wraps go-playground/validator with the rules and error
// shape used across the client and the sandbox.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/bissquit/campus/internal/domain"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Errors is a list of field errors. It implements error.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// Messages returns the messages in field order.
func (e Errors) Messages() []string {
	out := make([]string, 0, len(e))
	for _, fe := range e {
		out = append(out, fe.Message)
	}
	return out
}

// Field returns the message for field, if any.
func (e Errors) Field(field string) (string, bool) {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message, true
		}
	}
	return "", false
}

// Validator validates structs using their validate tags. Field names are
// taken from json tags.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the domain rules registered:
//
//	age_group  one of domain.AgeGroups
//	self_role  a role users may register with (student, educator)
//	role       any known role
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("age_group", func(fl validator.FieldLevel) bool {
		return slices.Contains(domain.AgeGroups, fl.Field().String())
	})
	_ = v.RegisterValidation("self_role", func(fl validator.FieldLevel) bool {
		role := domain.Role(fl.Field().String())
		return role == domain.RoleStudent || role == domain.RoleEducator
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).IsValid()
	})

	return &Validator{validate: v}
}

// Struct validates s. messages overrides the default message per field
// name. The result is nil or Errors.
func (v *Validator) Struct(s interface{}, messages map[string]string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = defaultMessage(fe)
		}
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: msg})
	}
	return out
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
