package shipper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the shape of a rate request before it is sent to any carrier.
// Failures are INVALID_REQUEST errors listing every offending field.
func Validate(req *RateRequest) error {
	if req == nil {
		return NewCarrierError("", KindInvalidRequest, "rate request is required")
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewCarrierError("", KindInvalidRequest, "rate request validation failed").WithCause(err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return NewCarrierError("", KindInvalidRequest, strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "RateRequest.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "alpha":
		return field + " must contain only letters"
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}
