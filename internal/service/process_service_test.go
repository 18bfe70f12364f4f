package service

import (
	"context"
	"testing"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/event"
	"licitacao/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftDeleteHidesAndRestoreBringsBackExactState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-D1")
	f.complete(t, f.alice, p.Steps[0].ID)
	_, err := f.transfers.TransferProcess(ctx, f.bob, p.ID, TransferProcessRequest{TargetDepartmentID: f.deptA})
	require.NoError(t, err)

	before, err := f.processes.GetProcess(ctx, f.alice, p.ID)
	require.NoError(t, err)

	require.NoError(t, f.processes.SoftDeleteProcess(ctx, f.alice, p.ID))
	assert.Equal(t, event.ProcessDeleted, lastEvent(t, f.events).Type)

	_, err = f.processes.GetProcess(ctx, f.alice, p.ID)
	requireKind(t, err, apperror.KindNotFound)
	_, err = f.processes.GetProcess(ctx, f.admin, p.ID)
	requireKind(t, err, apperror.KindNotFound)
	assert.False(t, f.visibleTo(t, f.alice, p.ID))
	assert.False(t, f.visibleTo(t, f.admin, p.ID))

	trash, total, err := f.processes.ListDeletedProcesses(ctx, f.admin, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, trash, 1)
	require.NotNil(t, trash[0].DeletedBy)
	assert.Equal(t, f.alice.UserID, *trash[0].DeletedBy)

	_, err = f.processes.RestoreProcess(ctx, f.bob, p.ID)
	requireKind(t, err, apperror.KindAuthorization)

	after, err := f.processes.RestoreProcess(ctx, f.alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, model.ProcessStatusInProgress, after.Status)
	assert.Equal(t, event.ProcessRestored, lastEvent(t, f.events).Type)
}

func TestRestoreRequiresDeletedProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-D2")

	_, err := f.processes.RestoreProcess(ctx, f.admin, p.ID)
	requireKind(t, err, apperror.KindState)

	_, err = f.processes.RestoreProcess(ctx, f.admin, uuid.New())
	requireKind(t, err, apperror.KindNotFound)
}

func TestPermanentDeleteIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-D3")

	err := f.processes.PermanentlyDeleteProcess(ctx, f.alice, p.ID)
	requireKind(t, err, apperror.KindAuthorization)

	_, _, err = f.processes.ListDeletedProcesses(ctx, f.alice, 1, 20)
	requireKind(t, err, apperror.KindAuthorization)

	require.NoError(t, f.processes.PermanentlyDeleteProcess(ctx, f.admin, p.ID))
	assert.Empty(t, f.mem.processes)
	assert.Empty(t, f.mem.steps)
	assert.Empty(t, f.mem.participants)
	assert.Contains(t, f.mem.auditActions(), model.ActionPermanentDeleteProcess)

	err = f.processes.PermanentlyDeleteProcess(ctx, f.admin, p.ID)
	requireKind(t, err, apperror.KindNotFound)
}

func TestCancelAndReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-C1")
	f.complete(t, f.alice, p.Steps[0].ID)

	got, err := f.processes.CancelProcess(ctx, f.bob, p.ID, CancelProcessRequest{Reason: "revogação"})
	require.NoError(t, err)
	assert.Equal(t, model.ProcessStatusCanceled, got.Status)

	_, err = f.processes.CancelProcess(ctx, f.bob, p.ID, CancelProcessRequest{})
	requireKind(t, err, apperror.KindState)

	_, err = f.processes.UpdateProcess(ctx, f.bob, p.ID, UpdateProcessRequest{Description: ptr("nova descrição")})
	requireKind(t, err, apperror.KindState)

	got, err = f.processes.ReopenProcess(ctx, f.bob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProcessStatusInProgress, got.Status)

	_, err = f.processes.ReopenProcess(ctx, f.bob, p.ID)
	requireKind(t, err, apperror.KindState)
}

func TestUpdateProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-U1")
	f.createProcess(t, "PBDOC-U2")

	value := decimal.RequireFromString("99000")
	got, err := f.processes.UpdateProcess(ctx, f.alice, p.ID, UpdateProcessRequest{
		PbdocNumber:    ptr("PBDOC-U1-A"),
		Priority:       ptr(model.PriorityHigh),
		EstimatedValue: &value,
	})
	require.NoError(t, err)
	assert.Equal(t, "PBDOC-U1-A", got.PbdocNumber)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.True(t, value.Equal(got.EstimatedValue))

	_, err = f.processes.UpdateProcess(ctx, f.alice, p.ID, UpdateProcessRequest{PbdocNumber: ptr("PBDOC-U2")})
	requireKind(t, err, apperror.KindValidation)

	_, err = f.processes.UpdateProcess(ctx, f.alice, p.ID, UpdateProcessRequest{Priority: ptr("urgent")})
	requireKind(t, err, apperror.KindValidation)

	_, err = f.processes.UpdateProcess(ctx, f.bob, p.ID, UpdateProcessRequest{Priority: ptr(model.PriorityLow)})
	requireKind(t, err, apperror.KindAuthorization)
}

func TestUpdateProcessSetsAndClearsDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-U4")
	require.NotNil(t, p.Deadline)

	past := f.now.Add(-48 * time.Hour)
	got, err := f.processes.UpdateProcess(ctx, f.alice, p.ID, UpdateProcessRequest{Deadline: &past})
	require.NoError(t, err)
	require.NotNil(t, got.Deadline)
	assert.Equal(t, model.ProcessStatusOverdue, got.Status)

	got, err = f.processes.UpdateProcess(ctx, f.alice, p.ID, UpdateProcessRequest{Deadline: &past, ClearDeadline: true})
	require.NoError(t, err)
	assert.Nil(t, got.Deadline)
	assert.Equal(t, model.ProcessStatusDraft, got.Status)
	assert.Nil(t, f.mem.processes[p.ID].Deadline)
}

func TestUpdateResponsibleGrantsOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcess(t, "PBDOC-U3")

	_, err := f.processes.UpdateProcess(ctx, f.alice, p.ID, UpdateProcessRequest{ResponsibleID: &f.carol.UserID})
	require.NoError(t, err)

	got, err := f.processes.GetProcess(ctx, f.carol, p.ID)
	require.NoError(t, err)
	assert.Equal(t, f.carol.UserID, got.ResponsibleID)
}

func TestListVisibleProcessesFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createProcess(t, "PBDOC-L1")
	f.createProcess(t, "PBDOC-L2")
	f.complete(t, f.alice, a.Steps[0].ID)

	list, total, err := f.processes.ListVisibleProcesses(ctx, f.admin, ProcessFilter{Status: model.ProcessStatusInProgress})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	list, _, err = f.processes.ListVisibleProcesses(ctx, f.alice, ProcessFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "PBDOC-L2", list[0].PbdocNumber)

	_, _, err = f.processes.ListVisibleProcesses(ctx, f.alice, ProcessFilter{Status: "archived"})
	requireKind(t, err, apperror.KindValidation)
}

func ptr[T any](v T) *T { return &v }
