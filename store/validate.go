package store

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

var mountPathPattern = regexp.MustCompile(`^[0-9a-zA-Z_\-.]+(/[0-9a-zA-Z_\-.]+)*/?$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	if err := v.RegisterValidation("mountpath", validateMountPath); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		panic(err)
	}
	return v
}

// fieldName reports fields by their wire name rather than
// by their Go name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "mapstructure"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validateMountPath(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" {
		return true
	}
	return mountPathPattern.MatchString(v)
}

func validateDuration(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" {
		return true
	}
	_, err := time.ParseDuration(v)
	return err == nil
}

func toValidationError(err error) *ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return AsValidationError(err)
	}
	result := &ValidationError{}
	for _, fe := range verrs {
		result.Errors = append(result.Errors, FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return result
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	case "mountpath":
		return fmt.Sprintf("%s may only contain letters, digits, '-', '_', '.' and '/' and must not start with '/'.", fe.Field())
	case "duration":
		return fmt.Sprintf("%s is not a valid duration.", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL.", fe.Field())
	case "hostname_port":
		return fmt.Sprintf("%s must be in the form host:port.", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid.", fe.Field())
	}
}

// decodeFields decodes loosely typed config fields into a
// typed config struct. Unknown fields are rejected.
func decodeFields(fields map[string]any, target any) *ValidationError {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return AsValidationError(errors.Wrapf(err, "error creating config decoder"))
	}
	if err := dec.Decode(fields); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			result := &ValidationError{}
			for _, msg := range merr.Errors {
				result.Errors = append(result.Errors, FieldError{Field: "fields", Message: msg})
			}
			return result
		}
		return AsValidationError(err)
	}
	return nil
}
