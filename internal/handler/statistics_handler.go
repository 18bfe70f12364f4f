package handler

import (
	"net/http"

	"licitacao/internal/middleware"
	"licitacao/internal/service"
	"licitacao/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	{
		statsGroup.GET("", middleware.RequirePermission(service.PermDashboardRead), h.GetStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Counts and estimated value totals of the caller's visible processes by status and priority
// @Tags         Statistics
// @Produce      json
// @Success      200 {object} response.Response{data=model.StatisticsResponse}
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      500 {object} response.Response "Internal server error"
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
