package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/recruit-sla/pkg/serrors"
)

// mapPgError translates storage errors of a mutation into the service taxonomy.
// Errors that already carry a taxonomy code pass through unchanged.
func mapPgError(op string, err error) error {
	if err == nil {
		return nil
	}
	if serrors.Code(err) != "" {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", serrors.ErrNotFound, op)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return serrors.TransactionFailure(op, err)
	}

	switch pgErr.Code {
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		if pgErr.ConstraintName == "milestone_instances_request_id_fkey" {
			return fmt.Errorf("%w: %s: recruitment request does not exist", serrors.ErrNotFound, op)
		}
		return fmt.Errorf("%w: %s: referenced row does not exist", serrors.ErrNotFound, op)
	case "23505": // unique_violation
		recordWriteConflict("unique")
		return fmt.Errorf("%w: %s: %s", serrors.ErrInvalidState, op, pgErr.ConstraintName)
	case "23514": // check_violation
		recordWriteConflict("check")
		if pgErr.ConstraintName == "milestone_instances_completed_requires_active" {
			return fmt.Errorf("%w: %s: milestone has not been activated", serrors.ErrInvalidState, op)
		}
		return fmt.Errorf("%w: %s: %s", serrors.ErrValidation, op, pgErr.ConstraintName)
	default:
		return serrors.TransactionFailure(op, err)
	}
}
