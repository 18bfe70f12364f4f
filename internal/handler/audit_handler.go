package handler

import (
	"net/http"

	"licitacao/internal/middleware"
	"licitacao/internal/repository"
	"licitacao/internal/service"
	"licitacao/pkg/pagination"
	"licitacao/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequirePermission(service.PermAuditRead))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves the workflow history, newest first
// @Summary      Get audit logs
// @Description  Lists audit entries, optionally for a single process or action
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_id  query     string  false  "Process ID"
// @Param        action     query     string  false  "Action such as COMPLETE_STEP"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.AuditLogResponse,meta=pagination.Meta}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	entityID, ok := queryUUID(c, "entity_id")
	if !ok {
		return
	}

	filter := repository.AuditFilter{
		Action: c.Query("action"),
		Page:   params.Page,
		Limit:  params.Limit,
	}
	if entityID != nil {
		filter.EntityID = entityID.String()
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, pagination.Meta{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
	}))
}
