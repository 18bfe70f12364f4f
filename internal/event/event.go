package event

import (
	"time"

	"github.com/google/uuid"
)

// Event types published after a workflow mutation commits.
const (
	ProcessCreated     = "process.created"
	StepCompleted      = "step.completed"
	StepRejected       = "step.rejected"
	ProcessTransferred = "process.transferred"
	ProcessReturned    = "process.returned"
	ProcessDeleted     = "process.deleted"
	ProcessRestored    = "process.restored"
)

// Event is the notification payload fanned out to subscribers. Departments
// is the audience; admins receive every event regardless.
type Event struct {
	Type        string                 `json:"type"`
	ProcessID   uuid.UUID              `json:"process_id"`
	PbdocNumber string                 `json:"pbdoc_number"`
	ActorID     *uuid.UUID             `json:"actor_id,omitempty"`
	Departments []uuid.UUID            `json:"departments"`
	Data        map[string]interface{} `json:"data,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// AddDepartment appends id to the audience unless nil or already present.
func (e *Event) AddDepartment(id *uuid.UUID) {
	if id == nil {
		return
	}
	for _, d := range e.Departments {
		if d == *id {
			return
		}
	}
	e.Departments = append(e.Departments, *id)
}
