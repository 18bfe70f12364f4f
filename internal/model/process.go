package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Process status values
const (
	ProcessStatusDraft      = "draft"
	ProcessStatusInProgress = "in_progress"
	ProcessStatusCompleted  = "completed"
	ProcessStatusCanceled   = "canceled"
	ProcessStatusOverdue    = "overdue"
)

// Process priority values
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Step outcomes. A rejected step still counts as completed for flow purposes.
const (
	StepOutcomePending   = "pending"
	StepOutcomeCompleted = "completed"
	StepOutcomeRejected  = "completed_rejected"
)

// Participant roles
const (
	ParticipantViewer = "viewer"
	ParticipantEditor = "editor"
	ParticipantOwner  = "owner"
)

// Process is a bidding process tracked through its departmental steps.
// Status is persisted after every mutation so reads never recompute it.
type Process struct {
	ID                  uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PbdocNumber         string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"pbdoc_number"`
	Description         string           `gorm:"type:text;not null" json:"description"`
	ModalityID          uuid.UUID        `gorm:"type:uuid;not null;index" json:"modality_id"`
	Modality            *BiddingModality `gorm:"foreignKey:ModalityID" json:"modality,omitempty"`
	ResourceSourceID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"resource_source_id"`
	ResourceSource      *ResourceSource  `gorm:"foreignKey:ResourceSourceID" json:"resource_source,omitempty"`
	ResponsibleID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"responsible_id"`
	Responsible         *User            `gorm:"foreignKey:ResponsibleID" json:"responsible,omitempty"`
	CurrentDepartmentID *uuid.UUID       `gorm:"type:uuid;index" json:"current_department_id"`
	CurrentDepartment   *Department      `gorm:"foreignKey:CurrentDepartmentID" json:"current_department,omitempty"`
	Priority            string           `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Status              string           `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	EstimatedValue      decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0" json:"estimated_value"`
	Deadline            *time.Time       `gorm:"index" json:"deadline"`
	ReturnComments      string           `gorm:"type:text" json:"return_comments"`
	CreatedBy           uuid.UUID        `gorm:"type:uuid;not null" json:"created_by"`
	Steps               []ProcessStep    `gorm:"foreignKey:ProcessID" json:"steps,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	DeletedAt           gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
	DeletedBy           *uuid.UUID       `gorm:"type:uuid" json:"deleted_by,omitempty"`
}

// ProcessStep is one departmental checkpoint. Steps of a process are ordered
// by Sequence; only the first incomplete step is actionable.
type ProcessStep struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProcessID    uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_process_step_seq" json:"process_id"`
	Process      *Process    `gorm:"foreignKey:ProcessID" json:"process,omitempty"`
	Sequence     int         `gorm:"not null;uniqueIndex:idx_process_step_seq" json:"sequence"`
	Name         string      `gorm:"type:varchar(255);not null" json:"name"`
	DepartmentID uuid.UUID   `gorm:"type:uuid;not null;index" json:"department_id"`
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	IsCompleted  bool        `gorm:"not null;default:false" json:"is_completed"`
	Outcome      string      `gorm:"type:varchar(20);not null;default:'pending';index" json:"outcome"`
	Observations string      `gorm:"type:text" json:"observations"`
	CompletedAt  *time.Time  `json:"completed_at"`
	CompletedBy  *uuid.UUID  `gorm:"type:uuid" json:"completed_by"`
	DueDate      *time.Time  `json:"due_date"`
}

// ProcessParticipant grants a user, a department, or a user within a
// department visibility of a process while IsActive is true.
type ProcessParticipant struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProcessID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"process_id"`
	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	DepartmentID *uuid.UUID `gorm:"type:uuid;index" json:"department_id"`
	Role         string     `gorm:"type:varchar(10);not null;default:'viewer'" json:"role"`
	AddedAt      time.Time  `gorm:"not null" json:"added_at"`
	IsActive     bool       `gorm:"not null;default:true;index" json:"is_active"`
}
