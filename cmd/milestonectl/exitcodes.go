package main

import (
	"errors"

	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitNotFound   = 5
	exitConflict   = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit code, then the service error taxonomy.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch {
	case errors.Is(err, serrors.ErrValidation):
		return exitValidation
	case errors.Is(err, serrors.ErrInvalidArgument):
		return exitUsage
	case errors.Is(err, serrors.ErrNotFound):
		return exitNotFound
	case errors.Is(err, serrors.ErrInvalidState):
		return exitConflict
	case errors.Is(err, serrors.ErrTransactionFailure):
		return exitDB
	default:
		return exitFailure
	}
}
