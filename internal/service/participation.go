package service

import (
	"context"
	"errors"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/event"
	"licitacao/internal/logger"
	"licitacao/internal/model"
	"licitacao/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// participation owns every participant-record mutation. Transfers, returns
// and step hand-offs all move custody through handOff.
type participation struct {
	participants repository.ParticipantRepository
}

// handOff revokes the current department's grants, grants target and points
// the process at it. The caller persists p.
func (m participation) handOff(ctx context.Context, p *model.Process, target uuid.UUID, at time.Time) error {
	if p.CurrentDepartmentID != nil && *p.CurrentDepartmentID != target {
		if _, err := m.participants.DeactivateDepartment(ctx, p.ID, *p.CurrentDepartmentID); err != nil {
			return apperror.Internal(err, "failed to revoke department access")
		}
	}
	if err := m.grantDepartment(ctx, p.ID, target, at); err != nil {
		return err
	}
	p.CurrentDepartmentID = &target
	return nil
}

// grantDepartment reactivates an existing department grant or creates one.
func (m participation) grantDepartment(ctx context.Context, processID, departmentID uuid.UUID, at time.Time) error {
	existing, err := m.participants.FindDepartmentGrant(ctx, processID, departmentID)
	switch {
	case err == nil:
		if existing.IsActive {
			return nil
		}
		if err := m.participants.Activate(ctx, existing.ID); err != nil {
			return apperror.Internal(err, "failed to reactivate department access")
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		dept := departmentID
		grant := &model.ProcessParticipant{
			ProcessID:    processID,
			DepartmentID: &dept,
			Role:         model.ParticipantEditor,
			AddedAt:      at,
			IsActive:     true,
		}
		if err := m.participants.Create(ctx, grant); err != nil {
			return apperror.Internal(err, "failed to grant department access")
		}
		return nil
	default:
		return apperror.Internal(err, "failed to load department access")
	}
}

func (m participation) grantUser(ctx context.Context, processID uuid.UUID, user *model.User, role string, at time.Time) error {
	userID := user.ID
	grant := &model.ProcessParticipant{
		ProcessID:    processID,
		UserID:       &userID,
		DepartmentID: user.DepartmentID,
		Role:         role,
		AddedAt:      at,
		IsActive:     true,
	}
	if err := m.participants.Create(ctx, grant); err != nil {
		return apperror.Internal(err, "failed to grant user access")
	}
	return nil
}

type TransferProcessRequest struct {
	TargetDepartmentID uuid.UUID `json:"target_department_id" binding:"required"`
	Reason             string    `json:"reason"`
}

type TransferService interface {
	TransferProcess(ctx context.Context, actor Actor, processID uuid.UUID, req TransferProcessRequest) (*ProcessResponse, error)
	ListParticipants(ctx context.Context, actor Actor, processID uuid.UUID) ([]ParticipantResponse, error)
}

type transferService struct {
	stores Stores
	parts  participation
	events EventPublisher
	clock  clock
}

func NewTransferService(stores Stores, opts Options) TransferService {
	return &transferService{
		stores: stores,
		parts:  participation{participants: stores.Participants},
		events: publisherOrNoop(opts.Events),
		clock:  newClock(opts),
	}
}

func (s *transferService) TransferProcess(ctx context.Context, actor Actor, processID uuid.UUID, req TransferProcessRequest) (*ProcessResponse, error) {
	if req.TargetDepartmentID == uuid.Nil {
		return nil, apperror.Validation("target_department_id", "target department is required")
	}
	// Reject unknown targets before anything is touched.
	dept, err := s.stores.Departments.FindByID(ctx, req.TargetDepartmentID)
	if err != nil {
		return nil, referenceErr(err, "target_department_id", "department", req.TargetDepartmentID)
	}
	if !dept.IsActive {
		return nil, apperror.Validation("target_department_id", "department %s is inactive", dept.Name)
	}

	var p *model.Process
	var from *uuid.UUID
	now := s.clock.Now()

	err = s.stores.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.stores.Processes.FindByIDForUpdate(txCtx, processID)
		if err != nil {
			return lookupErr(err, "process", processID)
		}
		if err := authorize(actor, capAct, p, nil); err != nil {
			return err
		}
		if p.Status == model.ProcessStatusCanceled || p.Status == model.ProcessStatusCompleted {
			return apperror.State(p.Status, "open process", "process %s is %s and cannot be transferred", p.PbdocNumber, p.Status)
		}
		if p.CurrentDepartmentID != nil && *p.CurrentDepartmentID == dept.ID {
			return apperror.State(dept.ID.String(), "a different department", "process %s is already in %s", p.PbdocNumber, dept.Name)
		}

		from = p.CurrentDepartmentID
		if err := s.parts.handOff(txCtx, p, dept.ID, now); err != nil {
			return err
		}
		steps, err := s.stores.Steps.ListByProcess(txCtx, p.ID)
		if err != nil {
			return apperror.Internal(err, "failed to load steps")
		}
		p.Status = DeriveStatus(p.Status, steps, p.Deadline, now)
		if err := s.stores.Processes.Update(txCtx, p); err != nil {
			return apperror.Internal(err, "failed to update process")
		}
		return recordAudit(txCtx, s.stores.Audit, actor.ref(), model.ActionTransferProcess, p, map[string]interface{}{
			"from_department_id": uuidString(from),
			"to_department_id":   dept.ID.String(),
			"reason":             req.Reason,
		})
	})
	if err != nil {
		return nil, txErr(err, "transfer process")
	}

	logger.FromContext(ctx).Info("process transferred",
		zap.String("pbdoc", p.PbdocNumber),
		zap.String("from", uuidString(from)),
		zap.String("to", dept.ID.String()))

	evt := event.Event{
		Type:        event.ProcessTransferred,
		ProcessID:   p.ID,
		PbdocNumber: p.PbdocNumber,
		ActorID:     actor.ref(),
		Data:        map[string]interface{}{"reason": req.Reason},
		OccurredAt:  now,
	}
	evt.AddDepartment(from)
	evt.AddDepartment(&dept.ID)
	s.events.Publish(ctx, evt)

	return reloadProcess(ctx, s.stores, p.ID)
}

func (s *transferService) ListParticipants(ctx context.Context, actor Actor, processID uuid.UUID) ([]ParticipantResponse, error) {
	p, err := s.stores.Processes.FindByID(ctx, processID)
	if err != nil {
		return nil, lookupErr(err, "process", processID)
	}
	participants, err := s.stores.Participants.ListByProcess(ctx, processID)
	if err != nil {
		return nil, apperror.Internal(err, "failed to load participants")
	}
	if err := authorize(actor, capView, p, participants); err != nil {
		return nil, err
	}

	res := make([]ParticipantResponse, 0, len(participants))
	for _, part := range participants {
		res = append(res, toParticipantResponse(part))
	}
	return res, nil
}

func reloadProcess(ctx context.Context, stores Stores, id uuid.UUID) (*ProcessResponse, error) {
	p, err := stores.Processes.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "process", id)
	}
	return toProcessResponse(p), nil
}
