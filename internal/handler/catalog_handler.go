package handler

import (
	"net/http"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/businessday"
	"licitacao/internal/middleware"
	"licitacao/internal/service"
	"licitacao/pkg/response"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves departments, bidding modalities, resource sources
// and the business-day calendar.
type CatalogHandler struct {
	catalog service.CatalogService
	loc     *time.Location
	now     func() time.Time
}

func NewCatalogHandler(catalog service.CatalogService, loc *time.Location) *CatalogHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CatalogHandler{catalog: catalog, loc: loc, now: time.Now}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")

	departments := api.Group("/departments")
	{
		departments.GET("", middleware.RequireAuth(), h.ListDepartments)
		departments.POST("", middleware.RequirePermission(service.PermCatalogWrite), h.CreateDepartment)
		departments.PUT("/:id", middleware.RequirePermission(service.PermCatalogWrite), h.UpdateDepartment)
	}

	modalities := api.Group("/modalities")
	{
		modalities.GET("", middleware.RequireAuth(), h.ListModalities)
		modalities.GET("/:id", middleware.RequireAuth(), h.GetModality)
		modalities.POST("", middleware.RequirePermission(service.PermCatalogWrite), h.CreateModality)
		modalities.PUT("/:id", middleware.RequirePermission(service.PermCatalogWrite), h.UpdateModality)
	}

	sources := api.Group("/resource-sources")
	{
		sources.GET("", middleware.RequireAuth(), h.ListResourceSources)
		sources.POST("", middleware.RequirePermission(service.PermCatalogWrite), h.CreateResourceSource)
		sources.PUT("/:id", middleware.RequirePermission(service.PermCatalogWrite), h.UpdateResourceSource)
	}

	api.GET("/calendar/business-days", middleware.RequireAuth(), h.BusinessDays)
}

// ListDepartments
// @Summary      List departments
// @Tags         catalog
// @Produce      json
// @Security     BearerAuth
// @Param        active  query     bool  false  "Only active departments"
// @Success      200     {object}  response.Response{data=[]model.Department}
// @Router       /api/departments [get]
func (h *CatalogHandler) ListDepartments(c *gin.Context) {
	departments, err := h.catalog.ListDepartments(c.Request.Context(), queryBool(c, "active"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, departments))
}

// CreateDepartment
// @Summary      Create department
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.DepartmentRequest  true  "Department"
// @Success      201      {object}  response.Response{data=model.Department}
// @Failure      400      {object}  response.Response
// @Router       /api/departments [post]
func (h *CatalogHandler) CreateDepartment(c *gin.Context) {
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	department, err := h.catalog.CreateDepartment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, department))
}

// UpdateDepartment renames or (de)activates a department
// @Summary      Update department
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Department ID"
// @Param        payload  body      service.DepartmentRequest  true  "Department"
// @Success      200      {object}  response.Response{data=model.Department}
// @Failure      400      {object}  response.Response
// @Router       /api/departments/{id} [put]
func (h *CatalogHandler) UpdateDepartment(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	department, err := h.catalog.UpdateDepartment(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, department))
}

// ListModalities
// @Summary      List bidding modalities
// @Tags         catalog
// @Produce      json
// @Security     BearerAuth
// @Param        active  query     bool  false  "Only active modalities"
// @Success      200     {object}  response.Response{data=[]model.BiddingModality}
// @Router       /api/modalities [get]
func (h *CatalogHandler) ListModalities(c *gin.Context) {
	modalities, err := h.catalog.ListModalities(c.Request.Context(), queryBool(c, "active"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, modalities))
}

// GetModality returns a modality with its step template
// @Summary      Get bidding modality
// @Tags         catalog
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Modality ID"
// @Success      200  {object}  response.Response{data=model.BiddingModality}
// @Failure      404  {object}  response.Response
// @Router       /api/modalities/{id} [get]
func (h *CatalogHandler) GetModality(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	modality, err := h.catalog.GetModality(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, modality))
}

// CreateModality
// @Summary      Create bidding modality
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ModalityRequest  true  "Modality with ordered step template"
// @Success      201      {object}  response.Response{data=model.BiddingModality}
// @Failure      400      {object}  response.Response
// @Router       /api/modalities [post]
func (h *CatalogHandler) CreateModality(c *gin.Context) {
	var req service.ModalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	modality, err := h.catalog.CreateModality(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, modality))
}

// UpdateModality replaces a modality's fields and step template.
// Existing processes keep the steps they were created with.
// @Summary      Update bidding modality
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Modality ID"
// @Param        payload  body      service.ModalityRequest  true  "Modality"
// @Success      200      {object}  response.Response{data=model.BiddingModality}
// @Failure      400      {object}  response.Response
// @Router       /api/modalities/{id} [put]
func (h *CatalogHandler) UpdateModality(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.ModalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	modality, err := h.catalog.UpdateModality(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, modality))
}

// ListResourceSources
// @Summary      List resource sources
// @Tags         catalog
// @Produce      json
// @Security     BearerAuth
// @Param        active  query     bool  false  "Only active sources"
// @Success      200     {object}  response.Response{data=[]model.ResourceSource}
// @Router       /api/resource-sources [get]
func (h *CatalogHandler) ListResourceSources(c *gin.Context) {
	sources, err := h.catalog.ListResourceSources(c.Request.Context(), queryBool(c, "active"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sources))
}

// CreateResourceSource
// @Summary      Create resource source
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ResourceSourceRequest  true  "Resource source"
// @Success      201      {object}  response.Response{data=model.ResourceSource}
// @Failure      400      {object}  response.Response
// @Router       /api/resource-sources [post]
func (h *CatalogHandler) CreateResourceSource(c *gin.Context) {
	var req service.ResourceSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	source, err := h.catalog.CreateResourceSource(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, source))
}

// UpdateResourceSource
// @Summary      Update resource source
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true  "Resource source ID"
// @Param        payload  body      service.ResourceSourceRequest  true  "Resource source"
// @Success      200      {object}  response.Response{data=model.ResourceSource}
// @Failure      400      {object}  response.Response
// @Router       /api/resource-sources/{id} [put]
func (h *CatalogHandler) UpdateResourceSource(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req service.ResourceSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	source, err := h.catalog.UpdateResourceSource(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, source))
}

// BusinessDays answers deadline questions for the UI
// @Summary      Business-day calendar
// @Description  Adds N business days to a date and/or counts business days between two dates
// @Tags         calendar
// @Produce      json
// @Security     BearerAuth
// @Param        from  query     string  false  "Start date, RFC3339 or YYYY-MM-DD (default today)"
// @Param        days  query     int     false  "Business days to add"
// @Param        to    query     string  false  "End date for counting"
// @Success      200   {object}  response.Response{data=service.BusinessDaysResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/calendar/business-days [get]
func (h *CatalogHandler) BusinessDays(c *gin.Context) {
	from, ok := queryTime(c, "from", h.loc)
	if !ok {
		return
	}
	if from == nil {
		now := h.now().In(h.loc)
		from = &now
	}
	days, ok := queryInt(c, "days", 0)
	if !ok {
		return
	}
	if days < 0 || days > businessday.MaxDays {
		writeError(c, apperror.Validation("days", "must be between 0 and %d", businessday.MaxDays))
		return
	}
	to, ok := queryTime(c, "to", h.loc)
	if !ok {
		return
	}
	if to != nil && to.Sub(*from) > businessday.MaxSpan {
		writeError(c, apperror.Validation("to", "must be within %d days of from", 2*businessday.MaxDays))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.catalog.BusinessDays(*from, days, to)))
}
