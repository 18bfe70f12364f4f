package service

import (
	"licitacao/internal/apperror"
	"licitacao/internal/model"
	"licitacao/internal/repository"

	"github.com/google/uuid"
)

// Actor is the authenticated caller as supplied by the auth middleware.
type Actor struct {
	UserID       uuid.UUID
	Role         string
	DepartmentID *uuid.UUID
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

func (a Actor) ref() *uuid.UUID {
	id := a.UserID
	return &id
}

type capability int

const (
	// capView: see the process (participant membership).
	capView capability = iota
	// capAct: mutate the workflow (process must be in the actor's department).
	capAct
	// capAdmin: administrative override actions.
	capAdmin
)

// authorize is the single authorization decision point for process access.
// Administrators pass every check; nobody else is looked up in any other way.
func authorize(a Actor, c capability, p *model.Process, participants []model.ProcessParticipant) error {
	if a.IsAdmin() {
		return nil
	}
	switch c {
	case capView:
		if hasActiveGrant(a, participants) {
			return nil
		}
		return apperror.Forbidden("you are not a participant of process %s", p.PbdocNumber)
	case capAct:
		if a.DepartmentID != nil && p.CurrentDepartmentID != nil && *a.DepartmentID == *p.CurrentDepartmentID {
			return nil
		}
		return &apperror.Error{
			Kind:     apperror.KindAuthorization,
			Field:    "current_department_id",
			Current:  uuidString(p.CurrentDepartmentID),
			Expected: uuidString(a.DepartmentID),
			Message:  "process " + p.PbdocNumber + " is not in your department",
		}
	default:
		return apperror.Forbidden("administrator role required")
	}
}

// visibilityScope is the query-side twin of authorize(capView): nil for
// administrators, otherwise the participant constraints for a.
func visibilityScope(a Actor) *repository.VisibilityScope {
	if a.IsAdmin() {
		return nil
	}
	return &repository.VisibilityScope{UserID: a.UserID, DepartmentID: a.DepartmentID}
}

func hasActiveGrant(a Actor, participants []model.ProcessParticipant) bool {
	for _, p := range participants {
		if !p.IsActive {
			continue
		}
		if p.UserID != nil && *p.UserID == a.UserID {
			return true
		}
		if p.UserID == nil && p.DepartmentID != nil && a.DepartmentID != nil && *p.DepartmentID == *a.DepartmentID {
			return true
		}
	}
	return false
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
