package ap2

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)
	validate        = newValidator()
)

// Validate ensures the request complies with the processor authorization
// contract by running go-playground/validator rules plus custom constraints.
func (r AuthorizeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return normalizeValidationError(err)
	}
	return nil
}

// Validate ensures the request complies with the credential token contract.
func (r TokenRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return normalizeValidationError(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	if err := v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return currencyPattern.MatchString(value)
	}); err != nil {
		panic(err)
	}

	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	first := validationErrs[0]
	fieldPath := jsonPath(first)
	message := validationMessage(first)
	return fmt.Errorf("%s %s", fieldPath, message)
}

func jsonPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "contains":
		return fmt.Sprintf("must contain %q", fe.Param())
	case "currency":
		return "must be a lowercase 3-letter ISO-4217 code"
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
