package service

import (
	"context"
	"testing"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/businessday"
	"licitacao/internal/event"
	"licitacao/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEvent(t *testing.T, m *MockPublisher) event.Event {
	t.Helper()
	require.NotEmpty(t, m.Calls)
	return m.Calls[len(m.Calls)-1].Arguments.Get(1).(event.Event)
}

func TestCreateProcessInstantiatesModalityTemplate(t *testing.T) {
	f := newFixture(t)

	p := f.createProcess(t, "PBDOC-2024/001")

	require.Len(t, p.Steps, 3)
	assert.Equal(t, model.ProcessStatusDraft, p.Status)
	require.NotNil(t, p.CurrentDepartmentID)
	assert.Equal(t, f.deptA, *p.CurrentDepartmentID)
	assert.Equal(t, model.PriorityMedium, p.Priority)
	assert.Equal(t, f.alice.UserID, p.CreatedBy)

	for i, s := range p.Steps {
		assert.Equal(t, i+1, s.Sequence)
		assert.False(t, s.IsCompleted)
		assert.Equal(t, model.StepOutcomePending, s.Outcome)
	}
	assert.True(t, p.Steps[0].IsCurrent)

	first := businessday.AddBusinessDays(f.now, 2)
	second := businessday.AddBusinessDays(first, 3)
	require.NotNil(t, p.Steps[0].DueDate)
	require.NotNil(t, p.Steps[1].DueDate)
	assert.Equal(t, first, *p.Steps[0].DueDate)
	assert.Equal(t, second, *p.Steps[1].DueDate)
	assert.Nil(t, p.Steps[2].DueDate)

	require.NotNil(t, p.Deadline)
	assert.Equal(t, businessday.AddBusinessDays(f.now, 30), *p.Deadline)

	assert.Equal(t, []string{event.ProcessCreated}, f.events.eventTypes())
	assert.Equal(t, []string{model.ActionCreateProcess}, f.mem.auditActions())
	assert.True(t, f.visibleTo(t, f.alice, p.ID))
	assert.False(t, f.visibleTo(t, f.bob, p.ID))
	assert.True(t, f.visibleTo(t, f.admin, p.ID))
}

func TestCreateProcessValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createProcess(t, "PBDOC-DUP")
	empty := f.addModality("Dispensa", 0)
	archive := f.addDepartment("Arquivo")
	d := f.mem.departments[archive]
	d.IsActive = false
	f.mem.departments[archive] = d
	unknown := uuid.New()

	tests := []struct {
		name  string
		edit  func(r *CreateProcessRequest)
		field string
	}{
		{"duplicate pbdoc", func(r *CreateProcessRequest) { r.PbdocNumber = "PBDOC-DUP" }, "pbdoc_number"},
		{"blank pbdoc", func(r *CreateProcessRequest) { r.PbdocNumber = "  " }, "pbdoc_number"},
		{"unknown modality", func(r *CreateProcessRequest) { r.ModalityID = uuid.New() }, "modality_id"},
		{"modality without steps", func(r *CreateProcessRequest) { r.ModalityID = empty }, "modality_id"},
		{"unknown resource source", func(r *CreateProcessRequest) { r.ResourceSourceID = uuid.New() }, "resource_source_id"},
		{"unknown responsible", func(r *CreateProcessRequest) { r.ResponsibleID = uuid.New() }, "responsible_id"},
		{"invalid priority", func(r *CreateProcessRequest) { r.Priority = "urgent" }, "priority"},
		{"negative value", func(r *CreateProcessRequest) { r.EstimatedValue = r.EstimatedValue.Neg() }, "estimated_value"},
		{"unknown department", func(r *CreateProcessRequest) { r.CurrentDepartmentID = &unknown }, "current_department_id"},
		{"inactive department", func(r *CreateProcessRequest) { r.CurrentDepartmentID = &archive }, "current_department_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.createRequest("PBDOC-NEW")
			tt.edit(&req)

			_, err := f.processes.CreateProcess(ctx, f.alice, req)

			requireKind(t, err, apperror.KindValidation)
			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestCreateProcessPbdocStaysTakenAfterSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-7")
	require.NoError(t, f.processes.SoftDeleteProcess(ctx, f.alice, p.ID))

	_, err := f.processes.CreateProcess(ctx, f.alice, f.createRequest("PBDOC-7"))
	requireKind(t, err, apperror.KindValidation)
}

func TestCompleteStepHandsOffToNextDepartment(t *testing.T) {
	f := newFixture(t)
	p := f.createProcess(t, "PBDOC-1")

	got := f.complete(t, f.alice, p.Steps[0].ID)

	assert.Equal(t, model.ProcessStatusInProgress, got.Status)
	require.NotNil(t, got.CurrentDepartmentID)
	assert.Equal(t, f.deptB, *got.CurrentDepartmentID)
	assert.True(t, got.Steps[0].IsCompleted)
	assert.Equal(t, model.StepOutcomeCompleted, got.Steps[0].Outcome)
	require.NotNil(t, got.Steps[0].CompletedBy)
	assert.Equal(t, f.alice.UserID, *got.Steps[0].CompletedBy)
	assert.Equal(t, f.now, *got.Steps[0].CompletedAt)
	assert.True(t, got.Steps[1].IsCurrent)

	assert.False(t, f.visibleTo(t, f.alice, p.ID))
	assert.True(t, f.visibleTo(t, f.bob, p.ID))
	assert.True(t, f.visibleTo(t, f.admin, p.ID))

	evt := lastEvent(t, f.events)
	assert.Equal(t, event.StepCompleted, evt.Type)
	assert.ElementsMatch(t, []uuid.UUID{f.deptA, f.deptB}, evt.Departments)
}

func TestCompleteStepRejectsOutOfOrderAndForeignDepartment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-2")

	_, err := f.workflow.CompleteStep(ctx, f.alice, p.Steps[1].ID, CompleteStepRequest{})
	requireKind(t, err, apperror.KindState)

	_, err = f.workflow.CompleteStep(ctx, f.bob, p.Steps[0].ID, CompleteStepRequest{})
	requireKind(t, err, apperror.KindAuthorization)

	_, err = f.workflow.CompleteStep(ctx, f.alice, uuid.New(), CompleteStepRequest{})
	requireKind(t, err, apperror.KindNotFound)

	steps, err := f.workflow.ListSteps(ctx, f.alice, p.ID)
	require.NoError(t, err)
	for _, s := range steps {
		assert.False(t, s.IsCompleted)
	}
}

func TestCompleteStepAppliesAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-3")
	first := f.complete(t, f.alice, p.Steps[0].ID).Steps[0]
	f.now = f.now.Add(2 * time.Hour)

	_, err := f.workflow.CompleteStep(ctx, f.bob, p.Steps[0].ID, CompleteStepRequest{Rejected: true, Observations: "de novo"})

	requireKind(t, err, apperror.KindState)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, model.StepOutcomeCompleted, appErr.Current)
	assert.Equal(t, model.StepOutcomePending, appErr.Expected)
	assert.Equal(t, []string{model.ActionCreateProcess, model.ActionCompleteStep}, f.mem.auditActions())

	steps, err := f.workflow.ListSteps(ctx, f.admin, p.ID)
	require.NoError(t, err)
	again := steps[0]
	require.NotNil(t, again.CompletedAt)
	require.NotNil(t, again.CompletedBy)
	assert.Equal(t, *first.CompletedAt, *again.CompletedAt)
	assert.Equal(t, f.alice.UserID, *again.CompletedBy)
	assert.Equal(t, model.StepOutcomeCompleted, again.Outcome)
	assert.Empty(t, again.Observations)
}

func TestRejectingMiddleStepKeepsProcessInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-9")
	f.complete(t, f.alice, p.Steps[0].ID)

	got, err := f.workflow.CompleteStep(ctx, f.bob, p.Steps[1].ID, CompleteStepRequest{
		Rejected:     true,
		Observations: "parecer desfavorável",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ProcessStatusInProgress, got.Status)
	require.NotNil(t, got.CurrentDepartmentID)
	assert.Equal(t, f.deptC, *got.CurrentDepartmentID)
	assert.Equal(t, model.StepOutcomeRejected, got.Steps[1].Outcome)
	assert.True(t, got.Steps[2].IsCurrent)
	assert.True(t, f.visibleTo(t, f.carol, p.ID))

	rejected, total, err := f.workflow.ListRejectedSteps(ctx, f.admin, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rejected, 1)
	assert.Equal(t, p.Steps[1].ID, rejected[0].ID)
	assert.Equal(t, "PBDOC-9", rejected[0].PbdocNumber)
	assert.Equal(t, model.ProcessStatusInProgress, rejected[0].ProcessStatus)
}

func TestRejectedStepStillAdvancesTheFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-4")

	got, err := f.workflow.CompleteStep(ctx, f.alice, p.Steps[0].ID, CompleteStepRequest{
		Rejected:     true,
		Observations: "  termo de referência incompleto ",
	})
	require.NoError(t, err)

	assert.True(t, got.Steps[0].IsCompleted)
	assert.Equal(t, model.StepOutcomeRejected, got.Steps[0].Outcome)
	assert.Equal(t, "termo de referência incompleto", got.Steps[0].Observations)
	assert.Equal(t, f.deptB, *got.CurrentDepartmentID)
	assert.Equal(t, event.StepRejected, lastEvent(t, f.events).Type)
	assert.Contains(t, f.mem.auditActions(), model.ActionRejectStep)

	rejected, total, err := f.workflow.ListRejectedSteps(ctx, f.admin, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rejected, 1)
	assert.Equal(t, "PBDOC-4", rejected[0].PbdocNumber)

	_, _, err = f.workflow.ListRejectedSteps(ctx, f.bob, 1, 20)
	requireKind(t, err, apperror.KindAuthorization)
}

func TestCompletingLastStepCompletesProcess(t *testing.T) {
	f := newFixture(t)
	p := f.createProcess(t, "PBDOC-5")

	f.complete(t, f.alice, p.Steps[0].ID)
	f.complete(t, f.bob, p.Steps[1].ID)
	got := f.complete(t, f.carol, p.Steps[2].ID)

	assert.Equal(t, model.ProcessStatusCompleted, got.Status)
	assert.Equal(t, f.deptC, *got.CurrentDepartmentID)
	for _, s := range got.Steps {
		assert.True(t, s.IsCompleted)
		assert.False(t, s.IsCurrent)
	}
}

func TestAdminMayCompleteAnyCurrentStep(t *testing.T) {
	f := newFixture(t)
	p := f.createProcess(t, "PBDOC-6")

	got := f.complete(t, f.admin, p.Steps[0].ID)

	assert.Equal(t, f.admin.UserID, *got.Steps[0].CompletedBy)
	assert.Equal(t, f.deptB, *got.CurrentDepartmentID)
}

func TestCompleteStepOnDeletedOrCanceledProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deleted := f.createProcess(t, "PBDOC-DEL")
	require.NoError(t, f.processes.SoftDeleteProcess(ctx, f.alice, deleted.ID))
	_, err := f.workflow.CompleteStep(ctx, f.alice, deleted.Steps[0].ID, CompleteStepRequest{})
	requireKind(t, err, apperror.KindNotFound)

	canceled := f.createProcess(t, "PBDOC-CAN")
	_, err = f.processes.CancelProcess(ctx, f.alice, canceled.ID, CancelProcessRequest{Reason: "licitação deserta"})
	require.NoError(t, err)
	_, err = f.workflow.CompleteStep(ctx, f.alice, canceled.Steps[0].ID, CompleteStepRequest{})
	requireKind(t, err, apperror.KindState)
}

func TestListStepsRequiresVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-8")

	_, err := f.workflow.ListSteps(ctx, f.bob, p.ID)
	requireKind(t, err, apperror.KindAuthorization)

	steps, err := f.workflow.ListSteps(ctx, f.admin, p.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 3)
}
