package service

import (
	"context"
	"testing"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fixture wires the workflow services over one memStore with three
// departments: protocol (A), legal (B) and bidding (C). The default modality
// walks A -> B -> C.
type fixture struct {
	mem    *memStore
	events *MockPublisher
	now    time.Time

	deptA, deptB, deptC uuid.UUID
	admin, alice, bob   Actor
	carol               Actor
	modalityID          uuid.UUID
	sourceID            uuid.UUID

	processes ProcessService
	workflow  WorkflowService
	transfers TransferService
	status    StatusService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem:    newMemStore(),
		events: new(MockPublisher),
		now:    time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), // Monday
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Return()

	f.deptA = f.addDepartment("Protocolo")
	f.deptB = f.addDepartment("Jurídico")
	f.deptC = f.addDepartment("Licitação")

	f.admin = f.addUser("admin", model.RoleAdmin, nil)
	f.alice = f.addUser("alice", model.RoleStaff, &f.deptA)
	f.bob = f.addUser("bob", model.RoleStaff, &f.deptB)
	f.carol = f.addUser("carol", model.RoleManager, &f.deptC)

	f.modalityID = f.addModality("Pregão Eletrônico", 30,
		model.ModalityStep{Name: "Autuação", DepartmentID: f.deptA, DurationDays: 2},
		model.ModalityStep{Name: "Parecer jurídico", DepartmentID: f.deptB, DurationDays: 3},
		model.ModalityStep{Name: "Publicação do edital", DepartmentID: f.deptC},
	)

	f.sourceID = uuid.New()
	f.mem.sources[f.sourceID] = model.ResourceSource{ID: f.sourceID, Name: "Tesouro Estadual", IsActive: true}

	opts := Options{Events: f.events, Location: time.UTC, Now: func() time.Time { return f.now }}
	stores := f.mem.stores()
	f.processes = NewProcessService(stores, opts)
	f.workflow = NewWorkflowService(stores, opts)
	f.transfers = NewTransferService(stores, opts)
	f.status = NewStatusService(stores, opts)
	return f
}

func (f *fixture) addDepartment(name string) uuid.UUID {
	id := uuid.New()
	f.mem.departments[id] = model.Department{ID: id, Name: name, IsActive: true}
	return id
}

func (f *fixture) addUser(name, role string, dept *uuid.UUID) Actor {
	id := uuid.New()
	f.mem.users[id] = model.User{ID: id, Username: name, Email: name + "@example.gov.br", Role: role, DepartmentID: dept}
	return Actor{UserID: id, Role: role, DepartmentID: dept}
}

func (f *fixture) addModality(name string, deadlineDays int, steps ...model.ModalityStep) uuid.UUID {
	id := uuid.New()
	for i := range steps {
		steps[i].ID = uuid.New()
		steps[i].ModalityID = id
		steps[i].Sequence = i + 1
	}
	f.mem.modalities[id] = model.BiddingModality{ID: id, Name: name, DeadlineDays: deadlineDays, IsActive: true, Steps: steps}
	return id
}

func (f *fixture) createRequest(pbdoc string) CreateProcessRequest {
	return CreateProcessRequest{
		PbdocNumber:      pbdoc,
		Description:      "Aquisição de material de expediente",
		ModalityID:       f.modalityID,
		ResourceSourceID: f.sourceID,
		ResponsibleID:    f.alice.UserID,
		EstimatedValue:   decimal.RequireFromString("15000.50"),
	}
}

func (f *fixture) createProcess(t *testing.T, pbdoc string) *ProcessResponse {
	t.Helper()
	p, err := f.processes.CreateProcess(context.Background(), f.alice, f.createRequest(pbdoc))
	require.NoError(t, err)
	return p
}

func (f *fixture) complete(t *testing.T, actor Actor, stepID uuid.UUID) *ProcessResponse {
	t.Helper()
	p, err := f.workflow.CompleteStep(context.Background(), actor, stepID, CompleteStepRequest{})
	require.NoError(t, err)
	return p
}

func (f *fixture) visibleTo(t *testing.T, actor Actor, id uuid.UUID) bool {
	t.Helper()
	list, _, err := f.processes.ListVisibleProcesses(context.Background(), actor, ProcessFilter{})
	require.NoError(t, err)
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperror.KindOf(err), "unexpected error: %v", err)
}
