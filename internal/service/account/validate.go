package account

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kvetinski/bank/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the field constraints of acc. Fields are checked in
// declaration order and only the first violation is reported.
func Validate(acc domain.Account) error {
	err := validate.Struct(acc)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate account: %w", err)
	}

	fe := fieldErrs[0]
	return &domain.ValidationError{
		Field:   fe.Field(),
		Message: fieldErrorMessage(fe),
	}
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("[%s] cannot be empty", fe.Field())
	case "min":
		return fmt.Sprintf("[%s] should have at least %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("[%s] should have exactly %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("[%s] is invalid", fe.Field())
	}
}
