// Package serrors holds the error taxonomy shared by services and transports.
//
// Domain code wraps one of the sentinels below with context:
//
//	return fmt.Errorf("%w: instance %s", serrors.ErrNotFound, id)
//
// and callers branch with errors.Is.
package serrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

type BaseError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	LocaleKey string `json:"locale_key,omitempty"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

var (
	ErrNotFound           = NewError("NOT_FOUND", "not found", "Errors.NotFound")
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", "Errors.Validation")
	ErrInvalidState       = NewError("INVALID_STATE", "invalid state", "Errors.InvalidState")
	ErrInvalidArgument    = NewError("INVALID_ARGUMENT", "invalid argument", "Errors.InvalidArgument")
	ErrTransactionFailure = NewError("TRANSACTION_FAILURE", "storage write failed", "Errors.TransactionFailure")
)

// Code returns the code of the first BaseError in err's chain, or "" if none.
func Code(err error) string {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Code
	}
	return ""
}

// TransactionFailure wraps a storage error unless it already carries a taxonomy code.
func TransactionFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if Code(err) != "" {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransactionFailure, op, err)
}

// ValidationErrors maps a field name to a human readable message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, v[field]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Message, strings.Join(parts, "; "))
}

func (v ValidationErrors) Unwrap() error {
	return ErrValidation
}

// ProcessValidatorErrors converts validator output into ValidationErrors keyed by fieldKey(field).
// When fieldKey returns "" the struct field name is used.
func ProcessValidatorErrors(errs validator.ValidationErrors, fieldKey func(field string) string) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fe := range errs {
		key := ""
		if fieldKey != nil {
			key = fieldKey(fe.Field())
		}
		if key == "" {
			key = fe.Field()
		}
		out[key] = describeTag(fe)
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on %q", fe.Tag())
	}
}
