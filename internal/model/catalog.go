package model

import (
	"time"

	"github.com/google/uuid"
)

// Department is an organizational unit that owns process steps.
type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Acronym   string    `gorm:"type:varchar(20)" json:"acronym"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BiddingModality is the legal procedure type. Its Steps are the template
// copied into every new process; DeadlineDays sets the process deadline.
type BiddingModality struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description"`
	DeadlineDays int            `gorm:"not null;default:0" json:"deadline_days"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	Steps        []ModalityStep `gorm:"foreignKey:ModalityID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ModalityStep is one entry of a modality's flow template.
type ModalityStep struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ModalityID   uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_modality_step_seq" json:"modality_id"`
	Sequence     int         `gorm:"not null;uniqueIndex:idx_modality_step_seq" json:"sequence"`
	Name         string      `gorm:"type:varchar(255);not null" json:"name"`
	DepartmentID uuid.UUID   `gorm:"type:uuid;not null" json:"department_id"`
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	DurationDays int         `gorm:"not null;default:0" json:"duration_days"`
}

// ResourceSource is the budget origin funding a process.
type ResourceSource struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
