package input

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	mountPathPattern = regexp.MustCompile(`^[0-9a-zA-Z_\-.]+(/[0-9a-zA-Z_\-.]+)*/?$`)
	mountFields      = map[string]bool{
		"type":                   true,
		"path":                   true,
		"description":            true,
		"local":                  true,
		"sealWrap":               true,
		"config.defaultLeaseTtl": true,
		"config.maxLeaseTtl":     true,
	}
)

func (s Session) Validate() error {
	return newValidator().Struct(s)
}

func (f FieldChange) Validate() error {
	return newValidator().Struct(f)
}

func (c ConfigFields) Validate() error {
	return newValidator().Struct(c)
}

func (c ConfigPanel) Validate() error {
	return newValidator().Struct(c)
}

func (p MountPlan) Validate() error {
	return newValidator().Struct(p)
}

func newValidator() *validator.Validate {
	validate := validator.New()
	if err := validate.RegisterValidation("duration", validateDuration); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("mountpath", validateMountPath); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("field", validateField); err != nil {
		panic(err)
	}
	return validate
}

func validateDuration(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" {
		return true
	}
	_, err := time.ParseDuration(v)
	return err == nil
}

func validateMountPath(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if v == "" {
		return true
	}
	return mountPathPattern.MatchString(v)
}

func validateField(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	if mountFields[v] {
		return true
	}
	key, ok := strings.CutPrefix(v, "options.")
	return ok && key != ""
}
