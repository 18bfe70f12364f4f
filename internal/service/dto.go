package service

import (
	"time"

	"licitacao/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProcessResponse struct {
	ID                    uuid.UUID       `json:"id"`
	PbdocNumber           string          `json:"pbdoc_number"`
	Description           string          `json:"description"`
	ModalityID            uuid.UUID       `json:"modality_id"`
	ModalityName          string          `json:"modality_name,omitempty"`
	ResourceSourceID      uuid.UUID       `json:"resource_source_id"`
	ResourceSourceName    string          `json:"resource_source_name,omitempty"`
	ResponsibleID         uuid.UUID       `json:"responsible_id"`
	ResponsibleName       string          `json:"responsible_name,omitempty"`
	CurrentDepartmentID   *uuid.UUID      `json:"current_department_id"`
	CurrentDepartmentName string          `json:"current_department_name,omitempty"`
	Priority              string          `json:"priority"`
	Status                string          `json:"status"`
	EstimatedValue        decimal.Decimal `json:"estimated_value"`
	Deadline              *time.Time      `json:"deadline"`
	ReturnComments        string          `json:"return_comments"`
	CreatedBy             uuid.UUID       `json:"created_by"`
	Steps                 []StepResponse  `json:"steps,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             *time.Time      `json:"deleted_at,omitempty"`
	DeletedBy             *uuid.UUID      `json:"deleted_by,omitempty"`
}

type StepResponse struct {
	ID             uuid.UUID  `json:"id"`
	ProcessID      uuid.UUID  `json:"process_id"`
	Sequence       int        `json:"sequence"`
	Name           string     `json:"name"`
	DepartmentID   uuid.UUID  `json:"department_id"`
	DepartmentName string     `json:"department_name,omitempty"`
	IsCompleted    bool       `json:"is_completed"`
	IsCurrent      bool       `json:"is_current"`
	Outcome        string     `json:"outcome"`
	Observations   string     `json:"observations"`
	CompletedAt    *time.Time `json:"completed_at"`
	CompletedBy    *uuid.UUID `json:"completed_by"`
	DueDate        *time.Time `json:"due_date"`
}

type RejectedStepResponse struct {
	StepResponse
	PbdocNumber   string `json:"pbdoc_number"`
	ProcessStatus string `json:"process_status"`
}

type ParticipantResponse struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id"`
	DepartmentID *uuid.UUID `json:"department_id"`
	Role         string     `json:"role"`
	AddedAt      time.Time  `json:"added_at"`
	IsActive     bool       `json:"is_active"`
}

func toProcessResponse(p *model.Process) *ProcessResponse {
	res := &ProcessResponse{
		ID:                  p.ID,
		PbdocNumber:         p.PbdocNumber,
		Description:         p.Description,
		ModalityID:          p.ModalityID,
		ResourceSourceID:    p.ResourceSourceID,
		ResponsibleID:       p.ResponsibleID,
		CurrentDepartmentID: p.CurrentDepartmentID,
		Priority:            p.Priority,
		Status:              p.Status,
		EstimatedValue:      p.EstimatedValue,
		Deadline:            p.Deadline,
		ReturnComments:      p.ReturnComments,
		CreatedBy:           p.CreatedBy,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		DeletedBy:           p.DeletedBy,
	}
	if p.Modality != nil {
		res.ModalityName = p.Modality.Name
	}
	if p.ResourceSource != nil {
		res.ResourceSourceName = p.ResourceSource.Name
	}
	if p.Responsible != nil {
		res.ResponsibleName = p.Responsible.Username
	}
	if p.CurrentDepartment != nil {
		res.CurrentDepartmentName = p.CurrentDepartment.Name
	}
	if p.DeletedAt.Valid {
		at := p.DeletedAt.Time
		res.DeletedAt = &at
	}
	if len(p.Steps) > 0 {
		res.Steps = toStepResponses(p.Steps)
	}
	return res
}

func toStepResponses(steps []model.ProcessStep) []StepResponse {
	current := currentStepIndex(steps)
	out := make([]StepResponse, 0, len(steps))
	for i := range steps {
		r := toStepResponse(&steps[i])
		r.IsCurrent = i == current
		out = append(out, r)
	}
	return out
}

func toStepResponse(s *model.ProcessStep) StepResponse {
	r := StepResponse{
		ID:           s.ID,
		ProcessID:    s.ProcessID,
		Sequence:     s.Sequence,
		Name:         s.Name,
		DepartmentID: s.DepartmentID,
		IsCompleted:  s.IsCompleted,
		Outcome:      s.Outcome,
		Observations: s.Observations,
		CompletedAt:  s.CompletedAt,
		CompletedBy:  s.CompletedBy,
		DueDate:      s.DueDate,
	}
	if s.Department != nil {
		r.DepartmentName = s.Department.Name
	}
	return r
}

func toParticipantResponse(p model.ProcessParticipant) ParticipantResponse {
	return ParticipantResponse{
		ID:           p.ID,
		UserID:       p.UserID,
		DepartmentID: p.DepartmentID,
		Role:         p.Role,
		AddedAt:      p.AddedAt,
		IsActive:     p.IsActive,
	}
}

// currentStepIndex returns the index of the first incomplete step in
// sequence order, or -1 when every step is done.
func currentStepIndex(steps []model.ProcessStep) int {
	for i := range steps {
		if !steps[i].IsCompleted {
			return i
		}
	}
	return -1
}
