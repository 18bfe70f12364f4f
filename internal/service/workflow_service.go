package service

import (
	"context"
	"errors"
	"strings"

	"licitacao/internal/apperror"
	"licitacao/internal/event"
	"licitacao/internal/logger"
	"licitacao/internal/model"
	"licitacao/internal/repository"
	"licitacao/pkg/pagination"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CompleteStepRequest struct {
	Rejected     bool   `json:"rejected"`
	Observations string `json:"observations"`
}

type ReturnProcessRequest struct {
	Comment            string     `json:"comment" binding:"required"`
	TargetDepartmentID *uuid.UUID `json:"target_department_id"`
}

// WorkflowService advances processes through their departmental steps.
type WorkflowService interface {
	CompleteStep(ctx context.Context, actor Actor, stepID uuid.UUID, req CompleteStepRequest) (*ProcessResponse, error)
	ReturnProcess(ctx context.Context, actor Actor, processID uuid.UUID, req ReturnProcessRequest) (*ProcessResponse, error)
	ListSteps(ctx context.Context, actor Actor, processID uuid.UUID) ([]StepResponse, error)
	ListRejectedSteps(ctx context.Context, actor Actor, page, limit int) ([]RejectedStepResponse, int64, error)
}

type workflowService struct {
	stores Stores
	parts  participation
	events EventPublisher
	clock  clock
}

func NewWorkflowService(stores Stores, opts Options) WorkflowService {
	return &workflowService{
		stores: stores,
		parts:  participation{participants: stores.Participants},
		events: publisherOrNoop(opts.Events),
		clock:  newClock(opts),
	}
}

// CompleteStep closes the current step of a process, optionally as a
// rejection, and hands the process to the next step's department.
func (s *workflowService) CompleteStep(ctx context.Context, actor Actor, stepID uuid.UUID, req CompleteStepRequest) (*ProcessResponse, error) {
	now := s.clock.Now()
	var (
		p    *model.Process
		step *model.ProcessStep
		from *uuid.UUID
		next *model.ProcessStep
	)

	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		step, err = s.stores.Steps.FindByIDForUpdate(txCtx, stepID)
		if err != nil {
			return lookupErr(err, "step", stepID)
		}
		// Deleted processes are invisible here, so their steps read as missing.
		p, err = s.stores.Processes.FindByIDForUpdate(txCtx, step.ProcessID)
		if err != nil {
			return lookupErr(err, "process", step.ProcessID)
		}
		if err := authorize(actor, capAct, p, nil); err != nil {
			return err
		}
		if p.Status == model.ProcessStatusCanceled {
			return apperror.State(p.Status, "open process", "process %s is canceled", p.PbdocNumber)
		}
		if step.IsCompleted {
			return apperror.State(step.Outcome, model.StepOutcomePending, "step %q is already completed", step.Name)
		}

		steps, err := s.stores.Steps.ListByProcess(txCtx, p.ID)
		if err != nil {
			return apperror.Internal(err, "failed to load steps")
		}
		idx := currentStepIndex(steps)
		if idx < 0 || steps[idx].ID != step.ID {
			expected := ""
			if idx >= 0 {
				expected = steps[idx].Name
			}
			return apperror.State(step.Name, expected, "step %q is not the current step of process %s", step.Name, p.PbdocNumber)
		}

		step.IsCompleted = true
		step.Outcome = model.StepOutcomeCompleted
		if req.Rejected {
			step.Outcome = model.StepOutcomeRejected
		}
		step.Observations = strings.TrimSpace(req.Observations)
		step.CompletedAt = &now
		step.CompletedBy = actor.ref()
		if err := s.stores.Steps.MarkCompleted(txCtx, step); err != nil {
			if errors.Is(err, repository.ErrStepAlreadyCompleted) {
				return apperror.State(model.StepOutcomeCompleted, model.StepOutcomePending, "step %q is already completed", step.Name)
			}
			return apperror.Internal(err, "failed to complete step")
		}
		steps[idx] = *step

		from = p.CurrentDepartmentID
		if idx+1 < len(steps) {
			next = &steps[idx+1]
			if err := s.parts.handOff(txCtx, p, next.DepartmentID, now); err != nil {
				return err
			}
		}

		p.Status = DeriveStatus(p.Status, steps, p.Deadline, now)
		if err := s.stores.Processes.Update(txCtx, p); err != nil {
			return apperror.Internal(err, "failed to update process")
		}

		action := model.ActionCompleteStep
		if req.Rejected {
			action = model.ActionRejectStep
		}
		details := map[string]interface{}{
			"step_id":      step.ID.String(),
			"step":         step.Name,
			"sequence":     step.Sequence,
			"outcome":      step.Outcome,
			"observations": step.Observations,
			"status":       p.Status,
		}
		if next != nil {
			details["next_department_id"] = next.DepartmentID.String()
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), action, p, details)
	})
	if err != nil {
		return nil, txErr(err, "complete step")
	}

	log := logger.FromContext(ctx).With(
		zap.String("pbdoc", p.PbdocNumber),
		zap.String("step", step.Name),
		zap.String("status", p.Status))
	evtType := event.StepCompleted
	if req.Rejected {
		evtType = event.StepRejected
		log.Warn("step rejected", zap.String("observations", step.Observations))
	} else {
		log.Info("step completed")
	}

	evt := event.Event{
		Type:        evtType,
		ProcessID:   p.ID,
		PbdocNumber: p.PbdocNumber,
		ActorID:     actor.ref(),
		Data: map[string]interface{}{
			"step_id":  step.ID,
			"step":     step.Name,
			"sequence": step.Sequence,
			"status":   p.Status,
		},
		OccurredAt: now,
	}
	evt.AddDepartment(from)
	evt.AddDepartment(p.CurrentDepartmentID)
	s.events.Publish(ctx, evt)

	return reloadProcess(ctx, s.stores, p.ID)
}

// ReturnProcess sends a process back to a previous department with a
// comment. Steps are left untouched; only custody moves.
func (s *workflowService) ReturnProcess(ctx context.Context, actor Actor, processID uuid.UUID, req ReturnProcessRequest) (*ProcessResponse, error) {
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		return nil, apperror.Validation("comment", "a return comment is required")
	}
	if req.TargetDepartmentID != nil {
		if !actor.IsAdmin() {
			return nil, apperror.Forbidden("only administrators may choose the return department")
		}
		if _, err := s.stores.Departments.FindByID(ctx, *req.TargetDepartmentID); err != nil {
			return nil, referenceErr(err, "target_department_id", "department", *req.TargetDepartmentID)
		}
	}

	now := s.clock.Now()
	var (
		p      *model.Process
		from   *uuid.UUID
		target uuid.UUID
	)
	err := s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.stores.Processes.FindByIDForUpdate(txCtx, processID)
		if err != nil {
			return lookupErr(err, "process", processID)
		}
		if err := authorize(actor, capAct, p, nil); err != nil {
			return err
		}
		if p.Status == model.ProcessStatusCanceled || p.Status == model.ProcessStatusCompleted {
			return apperror.State(p.Status, "open process", "process %s is %s and cannot be returned", p.PbdocNumber, p.Status)
		}

		steps, err := s.stores.Steps.ListByProcess(txCtx, p.ID)
		if err != nil {
			return apperror.Internal(err, "failed to load steps")
		}
		if req.TargetDepartmentID != nil {
			target = *req.TargetDepartmentID
		} else {
			prev := lastCompletedStep(steps)
			if prev == nil {
				return apperror.State(p.Status, "a completed step", "process %s has no completed step to return to", p.PbdocNumber)
			}
			target = prev.DepartmentID
		}

		previous := p.ReturnComments
		p.ReturnComments = comment
		from = p.CurrentDepartmentID
		if err := s.parts.handOff(txCtx, p, target, now); err != nil {
			return err
		}
		p.Status = DeriveStatus(p.Status, steps, p.Deadline, now)
		if err := s.stores.Processes.Update(txCtx, p); err != nil {
			return apperror.Internal(err, "failed to update process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionReturnProcess, p, map[string]interface{}{
			"from_department_id": uuidString(from),
			"to_department_id":   target.String(),
			"comment":            comment,
			"previous_comments":  previous,
		})
	})
	if err != nil {
		return nil, txErr(err, "return process")
	}

	logger.FromContext(ctx).Info("process returned",
		zap.String("pbdoc", p.PbdocNumber),
		zap.String("from", uuidString(from)),
		zap.String("to", target.String()))

	evt := event.Event{
		Type:        event.ProcessReturned,
		ProcessID:   p.ID,
		PbdocNumber: p.PbdocNumber,
		ActorID:     actor.ref(),
		Data:        map[string]interface{}{"comment": comment},
		OccurredAt:  now,
	}
	evt.AddDepartment(from)
	evt.AddDepartment(&target)
	s.events.Publish(ctx, evt)

	return reloadProcess(ctx, s.stores, p.ID)
}

func lastCompletedStep(steps []model.ProcessStep) *model.ProcessStep {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].IsCompleted {
			return &steps[i]
		}
	}
	return nil
}

func (s *workflowService) ListSteps(ctx context.Context, actor Actor, processID uuid.UUID) ([]StepResponse, error) {
	p, err := s.stores.Processes.FindByID(ctx, processID)
	if err != nil {
		return nil, lookupErr(err, "process", processID)
	}
	if !actor.IsAdmin() {
		participants, err := s.stores.Participants.ListByProcess(ctx, processID)
		if err != nil {
			return nil, apperror.Internal(err, "failed to load participants")
		}
		if err := authorize(actor, capView, p, participants); err != nil {
			return nil, err
		}
	}
	steps, err := s.stores.Steps.ListByProcess(ctx, processID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load steps")
	}
	return toStepResponses(steps), nil
}

// ListRejectedSteps is the administrators' review queue of rejected steps.
func (s *workflowService) ListRejectedSteps(ctx context.Context, actor Actor, page, limit int) ([]RejectedStepResponse, int64, error) {
	if err := authorize(actor, capAdmin, nil, nil); err != nil {
		return nil, 0, err
	}
	params := pagination.New(page, limit)
	steps, total, err := s.stores.Steps.ListRejected(ctx, params.Page, params.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list rejected steps")
	}

	res := make([]RejectedStepResponse, 0, len(steps))
	for i := range steps {
		r := RejectedStepResponse{StepResponse: toStepResponse(&steps[i])}
		if steps[i].Process != nil {
			r.PbdocNumber = steps[i].Process.PbdocNumber
			r.ProcessStatus = steps[i].Process.Status
		}
		res = append(res, r)
	}
	return res, total, nil
}
