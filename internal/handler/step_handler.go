package handler

import (
	"net/http"

	"licitacao/internal/middleware"
	"licitacao/internal/service"
	"licitacao/pkg/pagination"
	"licitacao/pkg/response"

	"github.com/gin-gonic/gin"
)

type StepHandler struct {
	workflow service.WorkflowService
}

func NewStepHandler(workflow service.WorkflowService) *StepHandler {
	return &StepHandler{workflow: workflow}
}

func (h *StepHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/api/steps/:id/complete", middleware.RequirePermission(service.PermProcessesWrite), h.CompleteStep)
	router.GET("/api/review/rejected-steps", middleware.RequirePermission(service.PermReviewRead), h.ListRejectedSteps)
}

// CompleteStep records the current department's decision on a step
// @Summary      Complete step
// @Description  Completes the current step, optionally flagged as rejected, and hands the process to the next step's department
// @Tags         steps
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true   "Step ID"
// @Param        payload  body      service.CompleteStepRequest  false  "Decision"
// @Success      200      {object}  response.Response{data=service.ProcessResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/steps/{id}/complete [post]
func (h *StepHandler) CompleteStep(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.CompleteStepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}

	process, err := h.workflow.CompleteStep(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, process))
}

// ListRejectedSteps is the administrative review queue
// @Summary      List rejected steps
// @Tags         steps
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.RejectedStepResponse,meta=pagination.Meta}
// @Failure      403    {object}  response.Response
// @Router       /api/review/rejected-steps [get]
func (h *StepHandler) ListRejectedSteps(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	steps, total, err := h.workflow.ListRejectedSteps(c.Request.Context(), actor, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, steps, pagination.Meta{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}))
}
