package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionCreateProcess          = "CREATE_PROCESS"
	ActionUpdateProcess          = "UPDATE_PROCESS"
	ActionCancelProcess          = "CANCEL_PROCESS"
	ActionReopenProcess          = "REOPEN_PROCESS"
	ActionCompleteStep           = "COMPLETE_STEP"
	ActionRejectStep             = "REJECT_STEP"
	ActionTransferProcess        = "TRANSFER_PROCESS"
	ActionReturnProcess          = "RETURN_PROCESS"
	ActionSoftDeleteProcess      = "SOFT_DELETE_PROCESS"
	ActionRestoreProcess         = "RESTORE_PROCESS"
	ActionPermanentDeleteProcess = "PERMANENT_DELETE_PROCESS"
	ActionRefreshStatus          = "REFRESH_STATUS"
)

// AuditLog tracks who changed which process, and how.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for the status worker
	User       *User          `gorm:"foreignKey:UserID" json:"user"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}
