// Package validation wraps the struct-tag validator so request types declare
// their constraints inline and handlers get a single error to report.
package validation

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

	// Report violations under the wire name, not the Go field name.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	return v
}

// Validate checks req against its validate tags and returns an error
// describing the first violated field.
func Validate(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		switch first.Tag() {
		case "required":
			return fmt.Errorf("field '%v' is required", first.Field())
		case "email":
			return fmt.Errorf("field '%v' must be a valid email address", first.Field())
		case "min":
			if first.Kind() == reflect.String {
				return fmt.Errorf("field '%v' must be at least %v characters", first.Field(), first.Param())
			}
			return fmt.Errorf("field '%v' must be at least %v", first.Field(), first.Param())
		case "max":
			if first.Kind() == reflect.String {
				return fmt.Errorf("field '%v' must be at most %v characters", first.Field(), first.Param())
			}
			return fmt.Errorf("field '%v' must be at most %v", first.Field(), first.Param())
		default:
			return fmt.Errorf("field '%v' failed '%v' validation", first.Field(), first.Tag())
		}
	}

	return fmt.Errorf("invalid request: %w", err)
}
