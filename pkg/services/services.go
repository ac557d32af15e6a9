package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ekaya-inc/herbtrace/pkg/apperrors"
)

// Transactor runs fn inside a database transaction carried by the context
// passed to fn. *database.DB satisfies it.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	// InSnapshot runs fn in a read-only transaction with a single consistent view.
	InSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

// MaxBatchIDLength bounds externally chosen batch identifiers.
const MaxBatchIDLength = 50

var inputValidate *validator.Validate

func init() {
	inputValidate = validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so messages match what callers sent.
	inputValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := inputValidate.RegisterValidation("notblank", validateNotBlank); err != nil {
		panic(fmt.Sprintf("failed to register notblank validation: %v", err))
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// validateInput checks struct tags and maps failures to apperrors.ErrValidation.
func validateInput(input any) error {
	if err := inputValidate.Struct(input); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+" "+describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date formatted as " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// invalid builds an ErrValidation with a formatted detail message.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, fmt.Sprintf(format, args...))
}
