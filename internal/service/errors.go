package service

import (
	"errors"

	"licitacao/internal/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// lookupErr translates a repository lookup failure for entity id.
func lookupErr(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity, id.String())
	}
	return apperror.Internal(err, "failed to load %s", entity)
}

// referenceErr translates a failed lookup of a foreign reference supplied by
// the caller: a missing row is the caller's mistake, not a missing resource.
func referenceErr(err error, field, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.Validation(field, "%s %s does not exist", entity, id)
	}
	return apperror.Internal(err, "failed to load %s", entity)
}

// txErr keeps classified errors raised inside a transaction and marks
// anything else (commit failures, driver errors) as infrastructure.
func txErr(err error, op string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(err, "failed to %s", op)
}
