package service

import (
	"context"
	"strings"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/businessday"
	"licitacao/internal/event"
	"licitacao/internal/logger"
	"licitacao/internal/model"
	"licitacao/internal/repository"
	"licitacao/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateProcessRequest struct {
	PbdocNumber         string          `json:"pbdoc_number" binding:"required"`
	Description         string          `json:"description" binding:"required"`
	ModalityID          uuid.UUID       `json:"modality_id" binding:"required"`
	ResourceSourceID    uuid.UUID       `json:"resource_source_id" binding:"required"`
	ResponsibleID       uuid.UUID       `json:"responsible_id" binding:"required"`
	CurrentDepartmentID *uuid.UUID      `json:"current_department_id"`
	Priority            string          `json:"priority"`
	EstimatedValue      decimal.Decimal `json:"estimated_value"`
	Deadline            *time.Time      `json:"deadline"`
}

type UpdateProcessRequest struct {
	PbdocNumber      *string          `json:"pbdoc_number"`
	Description      *string          `json:"description"`
	ResourceSourceID *uuid.UUID       `json:"resource_source_id"`
	ResponsibleID    *uuid.UUID       `json:"responsible_id"`
	Priority         *string          `json:"priority"`
	EstimatedValue   *decimal.Decimal `json:"estimated_value"`
	Deadline         *time.Time       `json:"deadline"`
	// ClearDeadline removes the deadline; it wins over Deadline.
	ClearDeadline bool `json:"clear_deadline"`
}

type CancelProcessRequest struct {
	Reason string `json:"reason"`
}

// ProcessFilter selects processes for listing. Zero fields do not filter;
// Page defaults to 1 and Limit to 20 (capped at 100).
type ProcessFilter struct {
	Status           string
	Priority         string
	ModalityID       *uuid.UUID
	ResourceSourceID *uuid.UUID
	DepartmentID     *uuid.UUID
	ResponsibleID    *uuid.UUID
	Search           string
	DeadlineFrom     *time.Time
	DeadlineTo       *time.Time
	Page             int
	Limit            int
}

var validStatuses = map[string]bool{
	model.ProcessStatusDraft:      true,
	model.ProcessStatusInProgress: true,
	model.ProcessStatusCompleted:  true,
	model.ProcessStatusCanceled:   true,
	model.ProcessStatusOverdue:    true,
}

var validPriorities = map[string]bool{
	model.PriorityLow:    true,
	model.PriorityMedium: true,
	model.PriorityHigh:   true,
}

// --- Interface ---

type ProcessService interface {
	CreateProcess(ctx context.Context, actor Actor, req CreateProcessRequest) (*ProcessResponse, error)
	GetProcess(ctx context.Context, actor Actor, id uuid.UUID) (*ProcessResponse, error)
	ListVisibleProcesses(ctx context.Context, actor Actor, filter ProcessFilter) ([]ProcessResponse, int64, error)
	UpdateProcess(ctx context.Context, actor Actor, id uuid.UUID, req UpdateProcessRequest) (*ProcessResponse, error)
	CancelProcess(ctx context.Context, actor Actor, id uuid.UUID, req CancelProcessRequest) (*ProcessResponse, error)
	ReopenProcess(ctx context.Context, actor Actor, id uuid.UUID) (*ProcessResponse, error)
	SoftDeleteProcess(ctx context.Context, actor Actor, id uuid.UUID) error
	RestoreProcess(ctx context.Context, actor Actor, id uuid.UUID) (*ProcessResponse, error)
	PermanentlyDeleteProcess(ctx context.Context, actor Actor, id uuid.UUID) error
	ListDeletedProcesses(ctx context.Context, actor Actor, page, limit int) ([]ProcessResponse, int64, error)
}

type processService struct {
	stores Stores
	parts  participation
	events EventPublisher
	clock  clock
}

func NewProcessService(stores Stores, opts Options) ProcessService {
	return &processService{
		stores: stores,
		parts:  participation{participants: stores.Participants},
		events: publisherOrNoop(opts.Events),
		clock:  newClock(opts),
	}
}

// --- Implementation ---

func (s *processService) CreateProcess(ctx context.Context, actor Actor, req CreateProcessRequest) (*ProcessResponse, error) {
	pbdoc := strings.TrimSpace(req.PbdocNumber)
	if pbdoc == "" {
		return nil, apperror.Validation("pbdoc_number", "pbdoc number is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, apperror.Validation("description", "description is required")
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !validPriorities[priority] {
		return nil, apperror.Validation("priority", "invalid priority %q", req.Priority)
	}
	if req.EstimatedValue.IsNegative() {
		return nil, apperror.Validation("estimated_value", "estimated value cannot be negative")
	}

	modality, err := s.stores.Modalities.FindByID(ctx, req.ModalityID)
	if err != nil {
		return nil, referenceErr(err, "modality_id", "modality", req.ModalityID)
	}
	if !modality.IsActive {
		return nil, apperror.Validation("modality_id", "modality %s is inactive", modality.Name)
	}
	if len(modality.Steps) == 0 {
		return nil, apperror.Validation("modality_id", "modality %s has no flow steps", modality.Name)
	}
	source, err := s.stores.ResourceSources.FindByID(ctx, req.ResourceSourceID)
	if err != nil {
		return nil, referenceErr(err, "resource_source_id", "resource source", req.ResourceSourceID)
	}
	if !source.IsActive {
		return nil, apperror.Validation("resource_source_id", "resource source %s is inactive", source.Name)
	}
	responsible, err := s.stores.Users.GetByID(ctx, req.ResponsibleID)
	if err != nil {
		return nil, referenceErr(err, "responsible_id", "user", req.ResponsibleID)
	}

	current := modality.Steps[0].DepartmentID
	if req.CurrentDepartmentID != nil {
		dept, err := s.stores.Departments.FindByID(ctx, *req.CurrentDepartmentID)
		if err != nil {
			return nil, referenceErr(err, "current_department_id", "department", *req.CurrentDepartmentID)
		}
		if !dept.IsActive {
			return nil, apperror.Validation("current_department_id", "department %s is inactive", dept.Name)
		}
		current = dept.ID
	}

	exists, err := s.stores.Processes.PbdocExists(ctx, pbdoc, uuid.Nil)
	if err != nil {
		return nil, apperror.Internal(err, "failed to check pbdoc number")
	}
	if exists {
		return nil, apperror.Validation("pbdoc_number", "pbdoc number %s already exists", pbdoc)
	}

	now := s.clock.Now()
	p := &model.Process{
		PbdocNumber:         pbdoc,
		Description:         strings.TrimSpace(req.Description),
		ModalityID:          modality.ID,
		ResourceSourceID:    source.ID,
		ResponsibleID:       responsible.ID,
		CurrentDepartmentID: &current,
		Priority:            priority,
		Status:              model.ProcessStatusDraft,
		EstimatedValue:      req.EstimatedValue,
		Deadline:            req.Deadline,
		CreatedBy:           actor.UserID,
	}
	if p.Deadline == nil && modality.DeadlineDays > 0 {
		d := businessday.AddBusinessDays(now, modality.DeadlineDays)
		p.Deadline = &d
	}

	err = s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.stores.Processes.Create(txCtx, p); err != nil {
			return apperror.Internal(err, "failed to create process")
		}

		steps := instantiateSteps(p.ID, modality.Steps, now)
		if err := s.stores.Steps.CreateBatch(txCtx, steps); err != nil {
			return apperror.Internal(err, "failed to create process steps")
		}

		if err := s.parts.grantUser(txCtx, p.ID, responsible, model.ParticipantOwner, now); err != nil {
			return err
		}
		if err := s.parts.grantDepartment(txCtx, p.ID, current, now); err != nil {
			return err
		}

		p.Status = DeriveStatus(p.Status, steps, p.Deadline, now)
		if p.Status != model.ProcessStatusDraft {
			if err := s.stores.Processes.Update(txCtx, p); err != nil {
				return apperror.Internal(err, "failed to update process status")
			}
		}

		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionCreateProcess, p, map[string]interface{}{
			"modality":   modality.Name,
			"steps":      len(steps),
			"department": current.String(),
		})
	})
	if err != nil {
		return nil, txErr(err, "create process")
	}

	logger.FromContext(ctx).Info("process created",
		zap.String("pbdoc", p.PbdocNumber),
		zap.String("modality", modality.Name),
		zap.Int("steps", len(modality.Steps)))

	evt := event.Event{
		Type:        event.ProcessCreated,
		ProcessID:   p.ID,
		PbdocNumber: p.PbdocNumber,
		ActorID:     actor.ref(),
		OccurredAt:  now,
	}
	evt.AddDepartment(&current)
	s.events.Publish(ctx, evt)

	return reloadProcess(ctx, s.stores, p.ID)
}

// instantiateSteps copies the modality template. Due dates accumulate
// business days from start; steps without a duration carry no due date.
func instantiateSteps(processID uuid.UUID, template []model.ModalityStep, start time.Time) []model.ProcessStep {
	steps := make([]model.ProcessStep, 0, len(template))
	cursor := start
	for i, t := range template {
		step := model.ProcessStep{
			ProcessID:    processID,
			Sequence:     i + 1,
			Name:         t.Name,
			DepartmentID: t.DepartmentID,
			Outcome:      model.StepOutcomePending,
		}
		if t.DurationDays > 0 {
			cursor = businessday.AddBusinessDays(cursor, t.DurationDays)
			due := cursor
			step.DueDate = &due
		}
		steps = append(steps, step)
	}
	return steps
}

func (s *processService) GetProcess(ctx context.Context, actor Actor, id uuid.UUID) (*ProcessResponse, error) {
	p, err := s.stores.Processes.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "process", id)
	}
	if !actor.IsAdmin() {
		participants, err := s.stores.Participants.ListByProcess(ctx, id)
		if err != nil {
			return nil, apperror.Internal(err, "failed to load participants")
		}
		if err := authorize(actor, capView, p, participants); err != nil {
			return nil, err
		}
	}
	return toProcessResponse(p), nil
}

func (s *processService) ListVisibleProcesses(ctx context.Context, actor Actor, filter ProcessFilter) ([]ProcessResponse, int64, error) {
	if filter.Status != "" && !validStatuses[filter.Status] {
		return nil, 0, apperror.Validation("status", "invalid status %q", filter.Status)
	}
	if filter.Priority != "" && !validPriorities[filter.Priority] {
		return nil, 0, apperror.Validation("priority", "invalid priority %q", filter.Priority)
	}
	page := pagination.New(filter.Page, filter.Limit)

	processes, total, err := s.stores.Processes.List(ctx, repository.ProcessFilter{
		Scope:            visibilityScope(actor),
		Status:           filter.Status,
		Priority:         filter.Priority,
		ModalityID:       filter.ModalityID,
		ResourceSourceID: filter.ResourceSourceID,
		DepartmentID:     filter.DepartmentID,
		ResponsibleID:    filter.ResponsibleID,
		Search:           strings.TrimSpace(filter.Search),
		DeadlineFrom:     filter.DeadlineFrom,
		DeadlineTo:       filter.DeadlineTo,
		Page:             page.Page,
		Limit:            page.Limit,
	})
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list processes")
	}

	res := make([]ProcessResponse, 0, len(processes))
	for i := range processes {
		res = append(res, *toProcessResponse(&processes[i]))
	}
	return res, total, nil
}

func (s *processService) UpdateProcess(ctx context.Context, actor Actor, id uuid.UUID, req UpdateProcessRequest) (*ProcessResponse, error) {
	now := s.clock.Now()
	changes := map[string]interface{}{}

	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.stores.Processes.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "process", id)
		}
		if err := authorize(actor, capAct, p, nil); err != nil {
			return err
		}
		if p.Status == model.ProcessStatusCanceled {
			return apperror.State(p.Status, "open process", "process %s is canceled; reopen it first", p.PbdocNumber)
		}

		if req.PbdocNumber != nil {
			pbdoc := strings.TrimSpace(*req.PbdocNumber)
			if pbdoc == "" {
				return apperror.Validation("pbdoc_number", "pbdoc number is required")
			}
			if pbdoc != p.PbdocNumber {
				exists, err := s.stores.Processes.PbdocExists(txCtx, pbdoc, p.ID)
				if err != nil {
					return apperror.Internal(err, "failed to check pbdoc number")
				}
				if exists {
					return apperror.Validation("pbdoc_number", "pbdoc number %s already exists", pbdoc)
				}
				changes["pbdoc_number"] = map[string]string{"from": p.PbdocNumber, "to": pbdoc}
				p.PbdocNumber = pbdoc
			}
		}
		if req.Description != nil {
			desc := strings.TrimSpace(*req.Description)
			if desc == "" {
				return apperror.Validation("description", "description is required")
			}
			p.Description = desc
			changes["description"] = true
		}
		if req.Priority != nil {
			if !validPriorities[*req.Priority] {
				return apperror.Validation("priority", "invalid priority %q", *req.Priority)
			}
			changes["priority"] = map[string]string{"from": p.Priority, "to": *req.Priority}
			p.Priority = *req.Priority
		}
		if req.EstimatedValue != nil {
			if req.EstimatedValue.IsNegative() {
				return apperror.Validation("estimated_value", "estimated value cannot be negative")
			}
			changes["estimated_value"] = map[string]string{"from": p.EstimatedValue.StringFixed(2), "to": req.EstimatedValue.StringFixed(2)}
			p.EstimatedValue = *req.EstimatedValue
		}
		switch {
		case req.ClearDeadline:
			if p.Deadline != nil {
				changes["deadline"] = nil
				p.Deadline = nil
			}
		case req.Deadline != nil:
			changes["deadline"] = req.Deadline.Format(time.RFC3339)
			p.Deadline = req.Deadline
		}
		if req.ResourceSourceID != nil && *req.ResourceSourceID != p.ResourceSourceID {
			if _, err := s.stores.ResourceSources.FindByID(txCtx, *req.ResourceSourceID); err != nil {
				return referenceErr(err, "resource_source_id", "resource source", *req.ResourceSourceID)
			}
			changes["resource_source_id"] = req.ResourceSourceID.String()
			p.ResourceSourceID = *req.ResourceSourceID
		}
		if req.ResponsibleID != nil && *req.ResponsibleID != p.ResponsibleID {
			user, err := s.stores.Users.GetByID(txCtx, *req.ResponsibleID)
			if err != nil {
				return referenceErr(err, "responsible_id", "user", *req.ResponsibleID)
			}
			if err := s.parts.grantUser(txCtx, p.ID, user, model.ParticipantOwner, now); err != nil {
				return err
			}
			changes["responsible_id"] = user.ID.String()
			p.ResponsibleID = user.ID
		}

		steps, err := s.stores.Steps.ListByProcess(txCtx, p.ID)
		if err != nil {
			return apperror.Internal(err, "failed to load steps")
		}
		p.Status = DeriveStatus(p.Status, steps, p.Deadline, now)
		if err := s.stores.Processes.Update(txCtx, p); err != nil {
			return apperror.Internal(err, "failed to update process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionUpdateProcess, p, changes)
	})
	if err != nil {
		return nil, txErr(err, "update process")
	}
	return reloadProcess(ctx, s.stores, id)
}

func (s *processService) CancelProcess(ctx context.Context, actor Actor, id uuid.UUID, req CancelProcessRequest) (*ProcessResponse, error) {
	var pbdoc string
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.stores.Processes.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "process", id)
		}
		if err := authorize(actor, capAct, p, nil); err != nil {
			return err
		}
		if p.Status == model.ProcessStatusCanceled || p.Status == model.ProcessStatusCompleted {
			return apperror.State(p.Status, "open process", "process %s is already %s", p.PbdocNumber, p.Status)
		}
		prev := p.Status
		p.Status = model.ProcessStatusCanceled
		pbdoc = p.PbdocNumber
		if err := s.stores.Processes.Update(txCtx, p); err != nil {
			return apperror.Internal(err, "failed to cancel process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionCancelProcess, p, map[string]interface{}{
			"previous_status": prev,
			"reason":          req.Reason,
		})
	})
	if err != nil {
		return nil, txErr(err, "cancel process")
	}
	logger.FromContext(ctx).Info("process canceled", zap.String("pbdoc", pbdoc))
	return reloadProcess(ctx, s.stores, id)
}

func (s *processService) ReopenProcess(ctx context.Context, actor Actor, id uuid.UUID) (*ProcessResponse, error) {
	now := s.clock.Now()
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.stores.Processes.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "process", id)
		}
		if err := authorize(actor, capAct, p, nil); err != nil {
			return err
		}
		if p.Status != model.ProcessStatusCanceled {
			return apperror.State(p.Status, model.ProcessStatusCanceled, "process %s is not canceled", p.PbdocNumber)
		}
		steps, err := s.stores.Steps.ListByProcess(txCtx, p.ID)
		if err != nil {
			return apperror.Internal(err, "failed to load steps")
		}
		p.Status = DeriveStatus("", steps, p.Deadline, now)
		if err := s.stores.Processes.Update(txCtx, p); err != nil {
			return apperror.Internal(err, "failed to reopen process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionReopenProcess, p, map[string]interface{}{
			"status": p.Status,
		})
	})
	if err != nil {
		return nil, txErr(err, "reopen process")
	}
	return reloadProcess(ctx, s.stores, id)
}

func (s *processService) SoftDeleteProcess(ctx context.Context, actor Actor, id uuid.UUID) error {
	now := s.clock.Now()
	var p *model.Process
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.stores.Processes.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "process", id)
		}
		if err := authorize(actor, capAct, p, nil); err != nil {
			return err
		}
		if err := s.stores.Processes.SoftDelete(txCtx, p.ID, actor.UserID, now); err != nil {
			return apperror.Internal(err, "failed to delete process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionSoftDeleteProcess, p, map[string]interface{}{
			"status": p.Status,
		})
	})
	if err != nil {
		return txErr(err, "delete process")
	}

	logger.FromContext(ctx).Info("process moved to trash", zap.String("pbdoc", p.PbdocNumber))
	evt := event.Event{
		Type:        event.ProcessDeleted,
		ProcessID:   p.ID,
		PbdocNumber: p.PbdocNumber,
		ActorID:     actor.ref(),
		OccurredAt:  now,
	}
	evt.AddDepartment(p.CurrentDepartmentID)
	s.events.Publish(ctx, evt)
	return nil
}

func (s *processService) RestoreProcess(ctx context.Context, actor Actor, id uuid.UUID) (*ProcessResponse, error) {
	var p *model.Process
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.stores.Processes.FindDeletedByID(txCtx, id)
		if err != nil {
			if _, anyErr := s.stores.Processes.FindAnyByID(txCtx, id); anyErr == nil {
				return apperror.State("active", "deleted", "process is not in the trash")
			}
			return lookupErr(err, "process", id)
		}
		if !actor.IsAdmin() && (p.DeletedBy == nil || *p.DeletedBy != actor.UserID) {
			return apperror.Forbidden("only an administrator or the user who deleted process %s may restore it", p.PbdocNumber)
		}
		if err := s.stores.Processes.Restore(txCtx, p.ID); err != nil {
			return apperror.Internal(err, "failed to restore process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionRestoreProcess, p, map[string]interface{}{
			"status": p.Status,
		})
	})
	if err != nil {
		return nil, txErr(err, "restore process")
	}

	evt := event.Event{
		Type:        event.ProcessRestored,
		ProcessID:   p.ID,
		PbdocNumber: p.PbdocNumber,
		ActorID:     actor.ref(),
		OccurredAt:  s.clock.Now(),
	}
	evt.AddDepartment(p.CurrentDepartmentID)
	s.events.Publish(ctx, evt)

	return reloadProcess(ctx, s.stores, id)
}

func (s *processService) PermanentlyDeleteProcess(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := authorize(actor, capAdmin, nil, nil); err != nil {
		return err
	}
	var pbdoc string
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.stores.Processes.FindAnyByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "process", id)
		}
		pbdoc = p.PbdocNumber
		if err := s.stores.Processes.HardDelete(txCtx, p.ID); err != nil {
			return apperror.Internal(err, "failed to purge process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionPermanentDeleteProcess, p, map[string]interface{}{
			"was_deleted": p.DeletedAt.Valid,
		})
	})
	if err != nil {
		return txErr(err, "purge process")
	}
	logger.FromContext(ctx).Warn("process permanently deleted", zap.String("pbdoc", pbdoc))
	return nil
}

func (s *processService) ListDeletedProcesses(ctx context.Context, actor Actor, page, limit int) ([]ProcessResponse, int64, error) {
	if err := authorize(actor, capAdmin, nil, nil); err != nil {
		return nil, 0, err
	}
	params := pagination.New(page, limit)
	processes, total, err := s.stores.Processes.ListDeleted(ctx, params.Page, params.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list deleted processes")
	}
	res := make([]ProcessResponse, 0, len(processes))
	for i := range processes {
		res = append(res, *toProcessResponse(&processes[i]))
	}
	return res, total, nil
}
