package handler

import (
	"net/http"
	"time"

	"licitacao/internal/middleware"
	"licitacao/internal/service"
	"licitacao/pkg/pagination"
	"licitacao/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProcessHandler struct {
	processes service.ProcessService
	workflow  service.WorkflowService
	transfers service.TransferService
	loc       *time.Location
}

func NewProcessHandler(processes service.ProcessService, workflow service.WorkflowService, transfers service.TransferService, loc *time.Location) *ProcessHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ProcessHandler{processes: processes, workflow: workflow, transfers: transfers, loc: loc}
}

func (h *ProcessHandler) RegisterRoutes(router *gin.RouterGroup) {
	processes := router.Group("/api/processes")
	{
		processes.GET("", middleware.RequirePermission(service.PermProcessesRead), h.ListProcesses)
		processes.POST("", middleware.RequirePermission(service.PermProcessesWrite), h.CreateProcess)
		processes.GET("/trash", middleware.RequirePermission(service.PermProcessesDelete), h.ListDeletedProcesses)

		processes.GET("/:id", middleware.RequirePermission(service.PermProcessesRead), h.GetProcess)
		processes.PUT("/:id", middleware.RequirePermission(service.PermProcessesWrite), h.UpdateProcess)
		processes.DELETE("/:id", middleware.RequirePermission(service.PermProcessesDelete), h.SoftDeleteProcess)
		processes.DELETE("/:id/permanent", middleware.RequirePermission(service.PermProcessesDelete), h.PermanentlyDeleteProcess)
		processes.POST("/:id/restore", middleware.RequirePermission(service.PermProcessesRestore), h.RestoreProcess)

		processes.POST("/:id/cancel", middleware.RequirePermission(service.PermProcessesWrite), h.CancelProcess)
		processes.POST("/:id/reopen", middleware.RequirePermission(service.PermProcessesWrite), h.ReopenProcess)
		processes.POST("/:id/transfer", middleware.RequirePermission(service.PermProcessesWrite), h.TransferProcess)
		processes.POST("/:id/return", middleware.RequirePermission(service.PermProcessesWrite), h.ReturnProcess)

		processes.GET("/:id/steps", middleware.RequirePermission(service.PermProcessesRead), h.ListSteps)
		processes.GET("/:id/participants", middleware.RequirePermission(service.PermProcessesRead), h.ListParticipants)
	}
}

// ListProcesses returns the processes the caller may see
// @Summary      List processes
// @Description  Lists processes visible to the caller's department, newest first
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        status              query     string  false  "draft, in_progress, completed, canceled or overdue"
// @Param        priority            query     string  false  "low, medium or high"
// @Param        modality_id         query     string  false  "Modality ID"
// @Param        resource_source_id  query     string  false  "Resource source ID"
// @Param        department_id       query     string  false  "Current department ID"
// @Param        responsible_id      query     string  false  "Responsible user ID"
// @Param        search              query     string  false  "Matches PBDOC number or description"
// @Param        deadline_from       query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        deadline_to         query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        page                query     int     false  "Page number (default 1)"
// @Param        limit               query     int     false  "Items per page (default 20, max 100)"
// @Success      200  {object}  response.Response{data=[]service.ProcessResponse,meta=pagination.Meta}
// @Failure      400  {object}  response.Response
// @Router       /api/processes [get]
func (h *ProcessHandler) ListProcesses(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	filter := service.ProcessFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
		Page:     params.Page,
		Limit:    params.Limit,
	}
	if filter.ModalityID, ok = queryUUID(c, "modality_id"); !ok {
		return
	}
	if filter.ResourceSourceID, ok = queryUUID(c, "resource_source_id"); !ok {
		return
	}
	if filter.DepartmentID, ok = queryUUID(c, "department_id"); !ok {
		return
	}
	if filter.ResponsibleID, ok = queryUUID(c, "responsible_id"); !ok {
		return
	}
	if filter.DeadlineFrom, ok = queryTime(c, "deadline_from", h.loc); !ok {
		return
	}
	if filter.DeadlineTo, ok = queryTime(c, "deadline_to", h.loc); !ok {
		return
	}

	processes, total, err := h.processes.ListVisibleProcesses(c.Request.Context(), actor, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, processes, pagination.Meta{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}))
}

// CreateProcess opens a new bidding process
// @Summary      Create process
// @Description  Creates a process and instantiates its modality's step template
// @Tags         processes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateProcessRequest  true  "Process"
// @Success      201      {object}  response.Response{data=service.ProcessResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/processes [post]
func (h *ProcessHandler) CreateProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	process, err := h.processes.CreateProcess(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, process))
}

// GetProcess returns one process with its steps
// @Summary      Get process
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Process ID"
// @Success      200  {object}  response.Response{data=service.ProcessResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/processes/{id} [get]
func (h *ProcessHandler) GetProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	process, err := h.processes.GetProcess(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// UpdateProcess edits the descriptive fields of a process
// @Summary      Update process
// @Tags         processes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Process ID"
// @Param        payload  body      service.UpdateProcessRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.ProcessResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/processes/{id} [put]
func (h *ProcessHandler) UpdateProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	process, err := h.processes.UpdateProcess(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// CancelProcess marks a process canceled
// @Summary      Cancel process
// @Tags         processes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true   "Process ID"
// @Param        payload  body      service.CancelProcessRequest  false  "Reason"
// @Success      200      {object}  response.Response{data=service.ProcessResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/processes/{id}/cancel [post]
func (h *ProcessHandler) CancelProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.CancelProcessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}

	process, err := h.processes.CancelProcess(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// ReopenProcess brings a canceled process back to its derived status
// @Summary      Reopen process
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Process ID"
// @Success      200  {object}  response.Response{data=service.ProcessResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/processes/{id}/reopen [post]
func (h *ProcessHandler) ReopenProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	process, err := h.processes.ReopenProcess(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// SoftDeleteProcess moves a process to the trash
// @Summary      Delete process
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Process ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/processes/{id} [delete]
func (h *ProcessHandler) SoftDeleteProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.processes.SoftDeleteProcess(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Process moved to trash"}))
}

// RestoreProcess takes a process out of the trash
// @Summary      Restore process
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Process ID"
// @Success      200  {object}  response.Response{data=service.ProcessResponse}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/processes/{id}/restore [post]
func (h *ProcessHandler) RestoreProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	process, err := h.processes.RestoreProcess(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// PermanentlyDeleteProcess removes a process and its steps for good
// @Summary      Purge process
// @Description  Admin only. Irreversible.
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Process ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/processes/{id}/permanent [delete]
func (h *ProcessHandler) PermanentlyDeleteProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.processes.PermanentlyDeleteProcess(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Process permanently deleted"}))
}

// ListDeletedProcesses lists the trash
// @Summary      List deleted processes
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.ProcessResponse,meta=pagination.Meta}
// @Failure      403    {object}  response.Response
// @Router       /api/processes/trash [get]
func (h *ProcessHandler) ListDeletedProcesses(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	processes, total, err := h.processes.ListDeletedProcesses(c.Request.Context(), actor, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, processes, pagination.Meta{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}))
}

// TransferProcess hands a process to another department
// @Summary      Transfer process
// @Tags         processes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                          true  "Process ID"
// @Param        payload  body      service.TransferProcessRequest  true  "Target department"
// @Success      200      {object}  response.Response{data=service.ProcessResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/processes/{id}/transfer [post]
func (h *ProcessHandler) TransferProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.TransferProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	process, err := h.transfers.TransferProcess(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// ReturnProcess sends a process back for rework
// @Summary      Return process
// @Description  Sends the process back to the department of the last completed step, or to an admin-chosen department
// @Tags         processes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Process ID"
// @Param        payload  body      service.ReturnProcessRequest  true  "Return comment"
// @Success      200      {object}  response.Response{data=service.ProcessResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/processes/{id}/return [post]
func (h *ProcessHandler) ReturnProcess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.ReturnProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	process, err := h.workflow.ReturnProcess(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// ListSteps returns a process's steps in order
// @Summary      List process steps
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Process ID"
// @Success      200  {object}  response.Response{data=[]service.StepResponse}
// @Router       /api/processes/{id}/steps [get]
func (h *ProcessHandler) ListSteps(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	steps, err := h.workflow.ListSteps(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, steps))
}

// ListParticipants returns the process's grants, active and revoked
// @Summary      List process participants
// @Tags         processes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Process ID"
// @Success      200  {object}  response.Response{data=[]service.ParticipantResponse}
// @Router       /api/processes/{id}/participants [get]
func (h *ProcessHandler) ListParticipants(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	participants, err := h.transfers.ListParticipants(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, participants))
}
