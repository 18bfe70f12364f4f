package service

import (
	"context"
	"encoding/json"

	"licitacao/internal/apperror"
	"licitacao/internal/model"
	"licitacao/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// recordAudit writes an audit row for p inside the caller's transaction.
func recordAudit(ctx context.Context, repo repository.AuditRepository, actorID *uuid.UUID, action string, p *model.Process, details map[string]interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return apperror.Internal(err, "failed to encode audit details")
	}
	entry := &model.AuditLog{
		UserID:     actorID,
		Action:     action,
		EntityID:   p.ID.String(),
		EntityName: p.PbdocNumber,
		Details:    datatypes.JSON(raw),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return apperror.Internal(err, "failed to write audit log")
	}
	return nil
}
