package service

import (
	"context"
	"strings"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/businessday"
	"licitacao/internal/model"
	"licitacao/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type DepartmentRequest struct {
	Name     string `json:"name" binding:"required"`
	Acronym  string `json:"acronym"`
	IsActive *bool  `json:"is_active"`
}

type ModalityStepRequest struct {
	Name         string    `json:"name" binding:"required"`
	DepartmentID uuid.UUID `json:"department_id" binding:"required"`
	DurationDays int       `json:"duration_days"`
}

type ModalityRequest struct {
	Name         string                `json:"name" binding:"required"`
	Description  string                `json:"description"`
	DeadlineDays int                   `json:"deadline_days"`
	IsActive     *bool                 `json:"is_active"`
	Steps        []ModalityStepRequest `json:"steps"`
}

type ResourceSourceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// BusinessDaysResponse answers calendar queries from the UI.
type BusinessDaysResponse struct {
	From         time.Time  `json:"from"`
	To           *time.Time `json:"to,omitempty"`
	Days         int        `json:"days"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	BusinessDays int        `json:"business_days"`
	// IsBusinessDay and Holiday describe From itself.
	IsBusinessDay bool   `json:"is_business_day"`
	Holiday       string `json:"holiday,omitempty"`
}

type CatalogService interface {
	ListDepartments(ctx context.Context, activeOnly bool) ([]model.Department, error)
	CreateDepartment(ctx context.Context, req DepartmentRequest) (*model.Department, error)
	UpdateDepartment(ctx context.Context, id uuid.UUID, req DepartmentRequest) (*model.Department, error)

	ListModalities(ctx context.Context, activeOnly bool) ([]model.BiddingModality, error)
	GetModality(ctx context.Context, id uuid.UUID) (*model.BiddingModality, error)
	CreateModality(ctx context.Context, req ModalityRequest) (*model.BiddingModality, error)
	UpdateModality(ctx context.Context, id uuid.UUID, req ModalityRequest) (*model.BiddingModality, error)

	ListResourceSources(ctx context.Context, activeOnly bool) ([]model.ResourceSource, error)
	CreateResourceSource(ctx context.Context, req ResourceSourceRequest) (*model.ResourceSource, error)
	UpdateResourceSource(ctx context.Context, id uuid.UUID, req ResourceSourceRequest) (*model.ResourceSource, error)

	BusinessDays(from time.Time, days int, to *time.Time) BusinessDaysResponse
}

type catalogService struct {
	tx          repository.TransactionManager
	departments repository.DepartmentRepository
	modalities  repository.ModalityRepository
	sources     repository.ResourceSourceRepository
}

func NewCatalogService(stores Stores) CatalogService {
	return &catalogService{
		tx:          stores.Tx,
		departments: stores.Departments,
		modalities:  stores.Modalities,
		sources:     stores.ResourceSources,
	}
}

// --- Departments ---

func (s *catalogService) ListDepartments(ctx context.Context, activeOnly bool) ([]model.Department, error) {
	departments, err := s.departments.List(ctx, activeOnly)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list departments")
	}
	return departments, nil
}

func (s *catalogService) CreateDepartment(ctx context.Context, req DepartmentRequest) (*model.Department, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("name", "name is required")
	}
	d := &model.Department{Name: name, Acronym: strings.TrimSpace(req.Acronym), IsActive: true}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	if err := s.departments.Create(ctx, d); err != nil {
		return nil, apperror.Internal(err, "failed to create department")
	}
	return d, nil
}

func (s *catalogService) UpdateDepartment(ctx context.Context, id uuid.UUID, req DepartmentRequest) (*model.Department, error) {
	d, err := s.departments.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "department", id)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		d.Name = name
	}
	d.Acronym = strings.TrimSpace(req.Acronym)
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	if err := s.departments.Update(ctx, d); err != nil {
		return nil, apperror.Internal(err, "failed to update department")
	}
	return d, nil
}

// --- Modalities ---

func (s *catalogService) ListModalities(ctx context.Context, activeOnly bool) ([]model.BiddingModality, error) {
	modalities, err := s.modalities.List(ctx, activeOnly)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list modalities")
	}
	return modalities, nil
}

func (s *catalogService) GetModality(ctx context.Context, id uuid.UUID) (*model.BiddingModality, error) {
	m, err := s.modalities.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "modality", id)
	}
	return m, nil
}

func validateDeadlineDays(days int) error {
	if days < 0 {
		return apperror.Validation("deadline_days", "deadline days cannot be negative")
	}
	if days > businessday.MaxDays {
		return apperror.Validation("deadline_days", "deadline days cannot exceed %d", businessday.MaxDays)
	}
	return nil
}

// buildTemplate validates the step template and numbers it from 1.
func (s *catalogService) buildTemplate(ctx context.Context, reqs []ModalityStepRequest) ([]model.ModalityStep, error) {
	steps := make([]model.ModalityStep, 0, len(reqs))
	for i, r := range reqs {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, apperror.Validation("steps", "step %d has no name", i+1)
		}
		if r.DurationDays < 0 {
			return nil, apperror.Validation("steps", "step %d has a negative duration", i+1)
		}
		if r.DurationDays > businessday.MaxDays {
			return nil, apperror.Validation("steps", "step %d lasts more than %d business days", i+1, businessday.MaxDays)
		}
		if _, err := s.departments.FindByID(ctx, r.DepartmentID); err != nil {
			return nil, referenceErr(err, "steps", "department", r.DepartmentID)
		}
		steps = append(steps, model.ModalityStep{
			Sequence:     i + 1,
			Name:         name,
			DepartmentID: r.DepartmentID,
			DurationDays: r.DurationDays,
		})
	}
	return steps, nil
}

func (s *catalogService) CreateModality(ctx context.Context, req ModalityRequest) (*model.BiddingModality, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("name", "name is required")
	}
	if err := validateDeadlineDays(req.DeadlineDays); err != nil {
		return nil, err
	}
	steps, err := s.buildTemplate(ctx, req.Steps)
	if err != nil {
		return nil, err
	}

	m := &model.BiddingModality{
		Name:         name,
		Description:  req.Description,
		DeadlineDays: req.DeadlineDays,
		IsActive:     true,
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.modalities.Create(txCtx, m); err != nil {
			return apperror.Internal(err, "failed to create modality")
		}
		if err := s.modalities.ReplaceSteps(txCtx, m.ID, steps); err != nil {
			return apperror.Internal(err, "failed to store modality steps")
		}
		return nil
	})
	if err != nil {
		return nil, txErr(err, "create modality")
	}
	return s.GetModality(ctx, m.ID)
}

// UpdateModality replaces the template only when Steps is non-nil. Existing
// processes keep the steps they were instantiated with.
func (s *catalogService) UpdateModality(ctx context.Context, id uuid.UUID, req ModalityRequest) (*model.BiddingModality, error) {
	m, err := s.modalities.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "modality", id)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		m.Name = name
	}
	if err := validateDeadlineDays(req.DeadlineDays); err != nil {
		return nil, err
	}
	m.Description = req.Description
	m.DeadlineDays = req.DeadlineDays
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}

	var steps []model.ModalityStep
	if req.Steps != nil {
		if steps, err = s.buildTemplate(ctx, req.Steps); err != nil {
			return nil, err
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.modalities.Update(txCtx, m); err != nil {
			return apperror.Internal(err, "failed to update modality")
		}
		if req.Steps != nil {
			if err := s.modalities.ReplaceSteps(txCtx, m.ID, steps); err != nil {
				return apperror.Internal(err, "failed to store modality steps")
			}
		}
		return nil
	})
	if err != nil {
		return nil, txErr(err, "update modality")
	}
	return s.GetModality(ctx, id)
}

// --- Resource sources ---

func (s *catalogService) ListResourceSources(ctx context.Context, activeOnly bool) ([]model.ResourceSource, error) {
	sources, err := s.sources.List(ctx, activeOnly)
	if err != nil {
		return nil, apperror.Internal(err, "failed to list resource sources")
	}
	return sources, nil
}

func (s *catalogService) CreateResourceSource(ctx context.Context, req ResourceSourceRequest) (*model.ResourceSource, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("name", "name is required")
	}
	src := &model.ResourceSource{Name: name, Description: req.Description, IsActive: true}
	if req.IsActive != nil {
		src.IsActive = *req.IsActive
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, apperror.Internal(err, "failed to create resource source")
	}
	return src, nil
}

func (s *catalogService) UpdateResourceSource(ctx context.Context, id uuid.UUID, req ResourceSourceRequest) (*model.ResourceSource, error) {
	src, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "resource source", id)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		src.Name = name
	}
	src.Description = req.Description
	if req.IsActive != nil {
		src.IsActive = *req.IsActive
	}
	if err := s.sources.Update(ctx, src); err != nil {
		return nil, apperror.Internal(err, "failed to update resource source")
	}
	return src, nil
}

// --- Calendar ---

// BusinessDays projects a due date days business days after from and, when
// to is given, counts the business days in [from, to].
func (s *catalogService) BusinessDays(from time.Time, days int, to *time.Time) BusinessDaysResponse {
	res := BusinessDaysResponse{From: from, Days: days, IsBusinessDay: businessday.IsBusinessDay(from)}
	if name, ok := businessday.HolidayName(from); ok {
		res.Holiday = name
	}
	if days > 0 {
		due := businessday.AddBusinessDays(from, days)
		res.DueDate = &due
	}
	if to != nil {
		res.To = to
		res.BusinessDays = businessday.CountBusinessDays(from, *to)
	}
	return res
}
