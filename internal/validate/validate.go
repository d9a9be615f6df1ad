// Package validate runs struct-tag validation at the boundary of each core
// operation and reports the first failure as an apperr ValidationError.
package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("specialty", validateSpecialty)
	_ = validate.RegisterValidation("clock", validateClock)
	_ = validate.RegisterValidation("notblank", validateNotBlank)
}

func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("", "%v", err)
	}

	fe := verrs[0]
	return apperr.Validation(snake(fe.Field()), "%s", message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "specialty":
		return "is not a known specialty"
	case "clock":
		return "must be a valid time of day"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "gt", "gtfield":
		return "must be greater than " + strings.ToLower(fe.Param())
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func validateSpecialty(fl validator.FieldLevel) bool {
	return catalog.Specialty(fl.Field().String()).Valid()
}

func validateClock(fl validator.FieldLevel) bool {
	return slot.Clock(fl.Field().Int()).Valid()
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func snake(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		prevLower = !upper
		b.WriteRune(r)
	}
	return b.String()
}
