package httputil

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

func validationError(e validator.FieldError) error {
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s is required", e.Field())
	case "max":
		return fmt.Errorf("%s cannot be longer than %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of %s", e.Field(), e.Param())
	}
	return fmt.Errorf("%s is not valid", e.Field())
}
