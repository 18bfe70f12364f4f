package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/logger"
	"licitacao/internal/middleware"
	"licitacao/internal/service"
	"licitacao/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal error, please try again"

// dateLayout is accepted in addition to RFC3339 for date-only query params.
const dateLayout = "2006-01-02"

// writeError maps a service error onto the response envelope. Infrastructure
// details are logged and never sent to the client.
func writeError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err, "unclassified error")
	}

	status := apperror.HTTPStatus(appErr.Kind)
	message := appErr.Message
	detail := response.ErrorDetail{
		Kind:     string(appErr.Kind),
		Field:    appErr.Field,
		Current:  appErr.Current,
		Expected: appErr.Expected,
	}
	if appErr.Kind == apperror.KindInfrastructure {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		message = internalErrorMessage
		detail = response.ErrorDetail{Kind: string(apperror.KindInfrastructure)}
	}

	c.AbortWithStatusJSON(status, response.Detailed(status, message, detail))
}

func writeBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, response.Detailed(http.StatusBadRequest,
		"Invalid request payload: "+err.Error(),
		response.ErrorDetail{Kind: string(apperror.KindValidation)}))
}

// currentActor returns the caller set by the auth middleware.
func currentActor(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
	}
	return actor, ok
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		writeError(c, apperror.Validation(name, "must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional UUID query parameter.
func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(c, apperror.Validation(name, "must be a valid UUID"))
		return nil, false
	}
	return &id, true
}

// queryTime parses an optional RFC3339 or YYYY-MM-DD query parameter.
// Date-only values are read in loc.
func queryTime(c *gin.Context, name string, loc *time.Location) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		writeError(c, apperror.Validation(name, "must be RFC3339 or YYYY-MM-DD"))
		return nil, false
	}
	return &t, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(c, apperror.Validation(name, "must be an integer"))
		return 0, false
	}
	return n, true
}

func queryBool(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}
