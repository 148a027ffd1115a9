// Package handler holds the gin handlers of the billing API.
package handler

import (
	"errors"
	"net/http"

	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/logger"
	"github.com/academy/feebilling/internal/infrastructure/scheduler"
	"github.com/academy/feebilling/internal/interfaces/http/dto"
	"github.com/academy/feebilling/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides the response helpers every handler shares
type BaseHandler struct{}

// Success sends a 200 envelope
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 envelope
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error envelope with an explicit status
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 for malformed input
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, message)
}

// BindError reports a JSON/query binding failure, naming the failed fields when known
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	h.BadRequest(c, middleware.SummarizeValidation(err))
}

// HandleError maps an application error to the envelope.
// Domain errors carry their own code; anything else is a 500 and is logged.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if errors.Is(err, scheduler.ErrRunInProgress) {
		h.Error(c, http.StatusConflict, dto.ErrCodeRunInProgress, err.Error())
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		status := dto.GetHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("Request failed", zap.String("code", domainErr.Code), zap.Error(err))
		}
		h.Error(c, status, code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An internal error occurred")
}

// tenantID returns the tenant set by the tenant middleware, or reads the header directly
func (h *BaseHandler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	raw := middleware.GetTenantID(c)
	if raw == "" {
		raw = c.GetHeader(middleware.TenantHeaderKey)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Tenant identification required")
		return uuid.Nil, false
	}
	return id, true
}

// uuidParam parses a UUID path parameter
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
